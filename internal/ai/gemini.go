package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultGeminiModel favours low latency and cost.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements ChatProvider on Google's Gemini SDK. Streamed output is re-framed into
// the same `data:` lines the OpenAI-compatible backends produce, so the relay treats all backends alike.
type GeminiProvider struct {
	client      *genai.Client
	httpClient  *http.Client
	extra       []option.ClientOption
	modelName   string
	temperature float32
	timeout     time.Duration
}

// NewGeminiProvider initializes a Gemini client. An empty model selects DefaultGeminiModel. A non-nil
// httpClient carries every request (proxy settings included); timeout > 0 bounds SendStatic.
// extra options (e.g. option.WithEndpoint) are applied last.
func NewGeminiProvider(ctx context.Context, apiKey, model string, httpClient *http.Client, timeout time.Duration, extra ...option.ClientOption) (*GeminiProvider, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	p := &GeminiProvider{
		httpClient:  httpClient,
		extra:       extra,
		modelName:   model,
		temperature: 0.4,
		timeout:     timeout,
	}
	client, err := p.newClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if p.httpClient != nil {
		// A custom HTTP client replaces the SDK's auth transport, so the key travels as a header.
		base := p.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Transport: &apiKeyTransport{key: apiKey, base: base},
			Timeout:   p.httpClient.Timeout,
		}))
	}
	client, err := genai.NewClient(ctx, append(opts, p.extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// apiKeyTransport sets the Gemini API key header on every request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("x-goog-api-key", t.key)
	return t.base.RoundTrip(r)
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	p.client.Close()
}

func (p *GeminiProvider) SendStatic(ctx context.Context, messages []Message, tools []ToolSchema) (*StaticCompletion, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	client, release, err := p.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	cs, last, err := p.startChat(client, messages, tools)
	if err != nil {
		return nil, err
	}
	resp, err := cs.SendMessage(ctx, last...)
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}
	return completionFromGemini(p.modelName, resp), nil
}

func (p *GeminiProvider) SendStream(ctx context.Context, messages []Message, tools []ToolSchema) (io.ReadCloser, error) {
	client, release, err := p.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	cs, last, err := p.startChat(client, messages, tools)
	if err != nil {
		release()
		return nil, err
	}

	iter := cs.SendMessageStream(ctx, last...)
	pr, pw := io.Pipe()
	go func() {
		defer release()
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				_, _ = io.WriteString(pw, "data: [DONE]\n\n")
				pw.Close()
				return
			}
			if err != nil {
				pw.CloseWithError(fmt.Errorf("gemini stream: %w", err))
				return
			}
			line, err := json.Marshal(chunkFromGemini(p.modelName, resp))
			if err != nil {
				pw.CloseWithError(fmt.Errorf("gemini stream: marshal chunk: %w", err))
				return
			}
			// A failed write means the reader side was closed; stop pulling from upstream.
			if _, err := fmt.Fprintf(pw, "data: %s\n\n", line); err != nil {
				return
			}
		}
	}()
	return pr, nil
}

// clientFor returns a client honouring a per-request key override; release must always be called.
func (p *GeminiProvider) clientFor(ctx context.Context) (*genai.Client, func(), error) {
	key, ok := APIKeyFrom(ctx)
	if !ok {
		return p.client, func() {}, nil
	}
	client, err := p.newClient(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { client.Close() }, nil
}

// startChat maps the conversation onto a Gemini chat session: system turns become the system
// instruction, the final turn is returned as the parts to send, everything before it is history.
func (p *GeminiProvider) startChat(client *genai.Client, messages []Message, tools []ToolSchema) (*genai.ChatSession, []genai.Part, error) {
	model := client.GenerativeModel(p.modelName)
	model.SetTemperature(p.temperature)

	var system []string
	var turns []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(turns) == 0 {
		return nil, nil, fmt.Errorf("gemini: conversation has no user or assistant turn")
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			schema, err := geminiSchema(t.Function.Parameters)
			if err != nil {
				return nil, nil, fmt.Errorf("gemini: tool %s: %w", t.Function.Name, err)
			}
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  schema,
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	cs := model.StartChat()
	cs.History = turns[:len(turns)-1]
	return cs, turns[len(turns)-1].Parts, nil
}

// jsonSchema is the subset of JSON schema used by tool parameter definitions.
type jsonSchema struct {
	Type        string                `json:"type"`
	Description string                `json:"description"`
	Enum        []string              `json:"enum"`
	Properties  map[string]jsonSchema `json:"properties"`
	Required    []string              `json:"required"`
	Items       *jsonSchema           `json:"items"`
}

func geminiSchema(raw json.RawMessage) (*genai.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s jsonSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	return s.toGemini(), nil
}

func (s jsonSchema) toGemini() *genai.Schema {
	out := &genai.Schema{
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.toGemini()
		}
	}
	if s.Items != nil {
		out.Items = s.Items.toGemini()
	}
	return out
}

func completionFromGemini(model string, resp *genai.GenerateContentResponse) *StaticCompletion {
	completion := &StaticCompletion{Object: "chat.completion", Model: model}
	for i, cand := range resp.Candidates {
		text, calls := splitParts(cand.Content)
		finish := geminiFinishReason(cand.FinishReason)
		if len(calls) > 0 {
			finish = "tool_calls"
		}
		completion.Choices = append(completion.Choices, StaticChoice{
			Index:        i,
			Message:      AssistantMessage{Role: RoleAssistant, Content: text, ToolCalls: calls},
			FinishReason: finish,
		})
	}
	return completion
}

func chunkFromGemini(model string, resp *genai.GenerateContentResponse) StreamChunk {
	chunk := StreamChunk{Object: "chat.completion.chunk", Model: model}
	for i, cand := range resp.Candidates {
		text, calls := splitParts(cand.Content)
		chunk.Choices = append(chunk.Choices, StreamChoice{
			Index:        i,
			Delta:        Delta{Content: text, ToolCalls: calls},
			FinishReason: geminiFinishReason(cand.FinishReason),
		})
	}
	return chunk
}

func splitParts(content *genai.Content) (string, []ToolCall) {
	if content == nil {
		return "", nil
	}
	var text strings.Builder
	var calls []ToolCall
	for _, part := range content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			calls = append(calls, toolCallFromGemini(v))
		case *genai.FunctionCall:
			calls = append(calls, toolCallFromGemini(*v))
		}
	}
	return text.String(), calls
}

func toolCallFromGemini(fc genai.FunctionCall) ToolCall {
	args, err := json.Marshal(fc.Args)
	if err != nil {
		args = []byte("{}")
	}
	return ToolCall{Type: "function", Function: FunctionCall{Name: fc.Name, Arguments: string(args)}}
}

func geminiFinishReason(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonStop:
		return FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return ""
	}
}
