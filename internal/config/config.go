// README: Config loader with env defaults for HTTP, LLM providers, geo providers, cache and upstream limits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type ProviderConfig struct {
	// Name selects the chat backend: "azure", "xai" or "gemini".
	Name       string
	AzureKey   string
	AzureURL   string
	XAIKey     string
	XAIURL     string
	GeminiKey  string
	Model      string
	Timeout    time.Duration
	RatePerSec float64
}

type PlacesConfig struct {
	GoogleKey        string
	ArcGISKey        string
	ArcGISPlacesURL  string
	ArcGISFeatureURL string
	Timeout          time.Duration
	// Strict makes a single failing provider fail the whole aggregation.
	Strict bool
}

type ProxyConfig struct {
	Enabled bool
	URL     string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	Redis struct {
		Addr string
	}
	Provider  ProviderConfig
	Places    PlacesConfig
	Proxy     ProxyConfig
	Templates struct {
		Path string
	}
	PlanInfo struct {
		TTL time.Duration
	}
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("TF_HTTP_ADDR", ":8080")
	cfg.Redis.Addr = envOrDefault("TF_REDIS_ADDR", "")

	cfg.Provider.Name = strings.ToLower(envOrDefault("TF_PROVIDER", "azure"))
	cfg.Provider.AzureKey = envOrDefault("OPENAI_API_KEY", "")
	cfg.Provider.AzureURL = envOrDefault("TF_AZURE_BASE_URL", "")
	cfg.Provider.XAIKey = envOrDefault("XAI_API_KEY", "")
	cfg.Provider.XAIURL = envOrDefault("TF_XAI_BASE_URL", "")
	cfg.Provider.GeminiKey = envOrDefault("GEMINI_API_KEY", "")
	cfg.Provider.Model = envOrDefault("TF_MODEL", "")
	cfg.Provider.Timeout = time.Duration(envOrDefaultInt("TF_UPSTREAM_TIMEOUT_SECONDS", 60)) * time.Second
	cfg.Provider.RatePerSec = envOrDefaultFloat("TF_UPSTREAM_RPS", 0)

	cfg.Places.GoogleKey = envOrDefault("GMPGIS_API_KEY", "")
	cfg.Places.ArcGISKey = envOrDefault("ARCGIS_API_KEY", "")
	cfg.Places.ArcGISPlacesURL = envOrDefault("TF_ARCGIS_PLACES_URL", "https://places-api.arcgis.com/arcgis/rest/services/places-service/v1")
	cfg.Places.ArcGISFeatureURL = envOrDefault("TF_ARCGIS_FEATURE_URL", "")
	cfg.Places.Timeout = time.Duration(envOrDefaultInt("TF_PLACES_TIMEOUT_SECONDS", 10)) * time.Second
	cfg.Places.Strict = envOrDefaultBool("TF_PLACES_STRICT", false)

	cfg.Proxy.Enabled = envOrDefaultBool("ENABLE_PROXY", false)
	cfg.Proxy.URL = envOrDefault("TF_PROXY_URL", "http://127.0.0.1:2084")

	cfg.Templates.Path = envOrDefault("TF_PROMPT_TEMPLATES", "configs/prompts.toml")
	cfg.PlanInfo.TTL = time.Duration(envOrDefaultInt("TF_PLANINFO_TTL_MINUTES", 24*60)) * time.Minute

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Provider.Name {
	case "azure":
		if c.Provider.AzureKey == "" {
			return fmt.Errorf("config: OPENAI_API_KEY is required for provider %q", c.Provider.Name)
		}
	case "xai":
		if c.Provider.XAIKey == "" {
			return fmt.Errorf("config: XAI_API_KEY is required for provider %q", c.Provider.Name)
		}
	case "gemini":
		if c.Provider.GeminiKey == "" {
			return fmt.Errorf("config: GEMINI_API_KEY is required for provider %q", c.Provider.Name)
		}
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider.Name)
	}
	if c.PlanInfo.TTL <= 0 {
		return fmt.Errorf("config: TF_PLANINFO_TTL_MINUTES must be positive")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
