package ai

import "time"

// Variant is the per-backend configuration of an OpenAI-compatible endpoint.
type Variant struct {
	Name    string
	BaseURL string
	// Path is appended to BaseURL and may carry a query string.
	Path string
	// AuthHeader receives AuthScheme followed by the API key.
	AuthHeader   string
	AuthScheme   string
	DefaultModel string
	Timeout      time.Duration
}

// Azure targets an Azure OpenAI deployment; the model is fixed by the deployment in the base URL.
var Azure = Variant{
	Name:       "azure",
	BaseURL:    "https://travelfinder.openai.azure.com/openai/deployments/gpt-4-2/",
	Path:       "chat/completions?api-version=2023-03-15-preview",
	AuthHeader: "api-key",
	Timeout:    60 * time.Second,
}

var XAI = Variant{
	Name:         "xai",
	BaseURL:      "https://api.x.ai/v1/",
	Path:         "chat/completions",
	AuthHeader:   "Authorization",
	AuthScheme:   "Bearer ",
	DefaultModel: "grok-2-1212",
	Timeout:      90 * time.Second,
}

// VariantByName resolves a configured provider name.
func VariantByName(name string) (Variant, bool) {
	switch name {
	case Azure.Name:
		return Azure, true
	case XAI.Name:
		return XAI, true
	default:
		return Variant{}, false
	}
}
