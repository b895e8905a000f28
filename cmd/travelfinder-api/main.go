// README: Entry point; loads config, wires services, serves HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"travelfinder/internal/ai"
	"travelfinder/internal/config"
	httptransport "travelfinder/internal/http"
	"travelfinder/internal/infra"
	"travelfinder/internal/maps"
	"travelfinder/internal/modules/places"
	"travelfinder/internal/modules/planinfo"
	"travelfinder/internal/modules/prompt"
	"travelfinder/internal/modules/relay"
	"travelfinder/internal/modules/tools"
	"travelfinder/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Streams are bounded by the request context, so the shared client carries no overall timeout.
	upstream, err := infra.NewHTTPClient(cfg.Proxy, 0)
	if err != nil {
		log.Fatal(err)
	}

	provider, closeProvider, err := infra.NewChatProvider(ctx, cfg.Provider, upstream)
	if err != nil {
		log.Fatalf("chat provider init: %v", err)
	}
	defer closeProvider()

	google, err := maps.NewGoogleClient(cfg.Places.GoogleKey, upstream)
	if err != nil {
		log.Fatal(err)
	}
	arcgis := maps.NewArcGISClient(cfg.Places.ArcGISKey, cfg.Places.ArcGISPlacesURL, cfg.Places.ArcGISFeatureURL, upstream)
	aggregator := places.NewAggregator(cfg.Places.Timeout, cfg.Places.Strict, google, arcgis)

	registry, err := prompt.LoadFile(cfg.Templates.Path)
	if err != nil {
		log.Fatalf("prompt templates: %v", err)
	}
	log.Printf("loaded %d prompt templates from %s", registry.Len(), cfg.Templates.Path)
	assembler := prompt.NewAssembler(registry)

	counter, err := ai.NewTiktokenCounter("gpt-3.5-turbo")
	if err != nil {
		log.Fatal(err)
	}

	var store planinfo.Store = planinfo.NewMemoryStore(cfg.PlanInfo.TTL)
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		store = planinfo.NewRedisStore(redisClient, cfg.PlanInfo.TTL)
	}

	chat := service.NewChatService(service.Deps{
		Provider:   provider,
		Places:     aggregator,
		HintPlaces: google,
		Assembler:  assembler,
		Relay:      relay.New(counter),
		Tools:      tools.NewDispatcher(arcgis),
		PlanInfo:   planinfo.NewExtractor(provider, google, assembler, store),
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{Chat: chat, Maps: google})
	if err := httptransport.NewServer(cfg.HTTP.Addr, router).Run(ctx); err != nil {
		log.Fatal(err)
	}
}
