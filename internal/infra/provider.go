// README: Chat backend selection from config.
package infra

import (
	"context"
	"fmt"
	"net/http"

	"travelfinder/internal/ai"
	"travelfinder/internal/config"
)

// NewChatProvider builds the backend named by cfg.Name. closeFn releases SDK resources and is never nil.
func NewChatProvider(ctx context.Context, cfg config.ProviderConfig, client *http.Client) (ai.ChatProvider, func(), error) {
	if cfg.Name == "gemini" {
		p, err := ai.NewGeminiProvider(ctx, cfg.GeminiKey, cfg.Model, client, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}

	variant, ok := ai.VariantByName(cfg.Name)
	if !ok {
		return nil, nil, fmt.Errorf("infra: unknown chat provider %q", cfg.Name)
	}
	key, baseURL := cfg.AzureKey, cfg.AzureURL
	if variant.Name == ai.XAI.Name {
		key, baseURL = cfg.XAIKey, cfg.XAIURL
	}
	p := ai.NewHTTPProvider(variant, key, client,
		ai.WithModel(cfg.Model),
		ai.WithBaseURL(baseURL),
		ai.WithStaticTimeout(cfg.Timeout),
		ai.WithRateLimit(cfg.RatePerSec),
	)
	return p, func() {}, nil
}
