// README: Console client; streams one prompt through the configured chat backend and prints the SSE frames.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"travelfinder/internal/ai"
	"travelfinder/internal/config"
	"travelfinder/internal/infra"
	"travelfinder/internal/modules/prompt"
	"travelfinder/internal/modules/relay"
)

func main() {
	message := flag.String("m", "I am near Taipei Main Station, where should I have breakfast?", "user message")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	upstream, err := infra.NewHTTPClient(cfg.Proxy, 0)
	if err != nil {
		log.Fatal(err)
	}
	provider, closeProvider, err := infra.NewChatProvider(ctx, cfg.Provider, upstream)
	if err != nil {
		log.Fatalf("Failed to initialize chat provider: %v", err)
	}
	defer closeProvider()

	counter, err := ai.NewTiktokenCounter("gpt-3.5-turbo")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("User: %s\n", *message)
	messages, _ := prompt.NewAssembler(nil).Prepend("", nil, []ai.Message{{Role: ai.RoleUser, Content: *message}})
	body, err := provider.SendStream(ctx, messages, nil)
	if err != nil {
		log.Fatalf("Error starting stream: %v", err)
	}

	summary, err := relay.New(counter).Run(ctx, body, relay.NewSSEStreamWriter(os.Stdout))
	if err != nil {
		log.Fatalf("Stream failed: %v", err)
	}
	fmt.Printf("\nAI Reply: %s\n", summary.Text)
	fmt.Printf("Tokens: %d, events: %d, malformed: %d\n", summary.TokenLength, summary.Events, summary.Malformed)
}
