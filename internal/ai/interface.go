package ai

import (
	"context"
	"io"
)

// ChatProvider defines the contract for one chat-completion backend.
// Backends differ in endpoint, auth and default model; callers never see which one they talk to.
type ChatProvider interface {
	// SendStream posts with stream=true and returns the raw event body as soon as response headers arrive.
	// The caller owns the returned reader and must close it.
	SendStream(ctx context.Context, messages []Message, tools []ToolSchema) (io.ReadCloser, error)

	// SendStatic posts with stream=false and waits for the decoded completion.
	SendStatic(ctx context.Context, messages []Message, tools []ToolSchema) (*StaticCompletion, error)
}

type apiKeyCtxKey struct{}

// WithAPIKey attaches a per-request API key that overrides the provider's configured key.
func WithAPIKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyCtxKey{}, key)
}

// APIKeyFrom returns the override key carried by ctx, if any.
func APIKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(apiKeyCtxKey{}).(string)
	return key, ok && key != ""
}
