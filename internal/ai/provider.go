package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response body is kept in StatusError.
const maxErrorBody = 4 << 10

// HTTPProvider implements ChatProvider for OpenAI-compatible chat-completion endpoints.
// One type serves every such backend; the Variant carries what differs between them.
type HTTPProvider struct {
	variant Variant
	apiKey  string
	model   string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

type Option func(*HTTPProvider)

// WithModel overrides the variant's default model identifier.
func WithModel(model string) Option {
	return func(p *HTTPProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL points the provider at another deployment of the same backend.
func WithBaseURL(baseURL string) Option {
	return func(p *HTTPProvider) {
		if baseURL != "" {
			p.variant.BaseURL = baseURL
		}
	}
}

// WithStaticTimeout bounds SendStatic. Streams are bounded by the caller's context only.
func WithStaticTimeout(d time.Duration) Option {
	return func(p *HTTPProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRateLimit throttles upstream requests to rps per second. rps <= 0 disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(p *HTTPProvider) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewHTTPProvider creates a provider for variant v. client must not carry an overall Timeout,
// otherwise long streams are cut; a nil client uses http.DefaultClient.
func NewHTTPProvider(v Variant, apiKey string, client *http.Client, opts ...Option) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	p := &HTTPProvider{
		variant: v,
		apiKey:  apiKey,
		model:   v.DefaultModel,
		client:  client,
		timeout: v.Timeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name reports the backend variant name.
func (p *HTTPProvider) Name() string {
	return p.variant.Name
}

func (p *HTTPProvider) SendStream(ctx context.Context, messages []Message, tools []ToolSchema) (io.ReadCloser, error) {
	req, err := p.newRequest(ctx, ChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   true,
		Tools:    tools,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// Do returns once headers are in; the body is read incrementally by the caller.
	resp, err := p.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (p *HTTPProvider) SendStatic(ctx context.Context, messages []Message, tools []ToolSchema) (*StaticCompletion, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := p.newRequest(ctx, ChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Tools:    tools,
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", p.variant.Name, err)
	}

	var completion StaticCompletion
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("%s: unmarshal response: %w", p.variant.Name, err)
	}
	return &completion, nil
}

func (p *HTTPProvider) newRequest(ctx context.Context, body ChatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.variant.Name, err)
	}

	endpoint := strings.TrimRight(p.variant.BaseURL, "/") + "/" + strings.TrimLeft(p.variant.Path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.variant.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	key := p.apiKey
	if override, ok := APIKeyFrom(ctx); ok {
		key = override
	}
	req.Header.Set(p.variant.AuthHeader, p.variant.AuthScheme+key)
	return req, nil
}

func (p *HTTPProvider) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit: %w", p.variant.Name, err)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: do request: %w", p.variant.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Provider: p.variant.Name, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}
