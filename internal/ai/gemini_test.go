package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

func TestGeminiSchema(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"record_count": {"type": "integer", "description": "max records"},
			"category_type": {"type": "string", "enum": ["cafe", "museum"]},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["category_type"]
	}`)
	s, err := geminiSchema(raw)
	if err != nil {
		t.Fatalf("geminiSchema: %v", err)
	}
	if s.Type != genai.TypeObject || len(s.Properties) != 3 {
		t.Fatalf("unexpected schema: %+v", s)
	}
	if s.Properties["record_count"].Type != genai.TypeInteger {
		t.Errorf("record_count type = %v", s.Properties["record_count"].Type)
	}
	if got := s.Properties["category_type"].Enum; len(got) != 2 {
		t.Errorf("enum = %v", got)
	}
	if items := s.Properties["tags"].Items; items == nil || items.Type != genai.TypeString {
		t.Errorf("array items not converted")
	}
	if len(s.Required) != 1 || s.Required[0] != "category_type" {
		t.Errorf("required = %v", s.Required)
	}

	if s, err := geminiSchema(nil); err != nil || s != nil {
		t.Errorf("empty parameters: %v, %v", s, err)
	}
	if _, err := geminiSchema(json.RawMessage(`{`)); err == nil {
		t.Errorf("expected decode error")
	}
}

func TestCompletionFromGemini(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: "model", Parts: []genai.Part{
			genai.Text("Looking "),
			genai.Text("around"),
			genai.FunctionCall{Name: "QueryFeature", Args: map[string]any{"category_type": "cafe"}},
		}},
		FinishReason: genai.FinishReasonStop,
	}}}

	c := completionFromGemini("gemini-2.0-flash", resp)
	if len(c.Choices) != 1 {
		t.Fatalf("choices = %d", len(c.Choices))
	}
	msg := c.Choices[0].Message
	if msg.Content != "Looking around" {
		t.Errorf("content = %q", msg.Content)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "QueryFeature" {
		t.Fatalf("tool calls = %+v", msg.ToolCalls)
	}
	args, err := msg.ToolCalls[0].Function.ArgumentMap()
	if err != nil || args["category_type"] != "cafe" {
		t.Errorf("arguments = %v, %v", args, err)
	}
	if c.Choices[0].FinishReason != "tool_calls" {
		t.Errorf("finish reason = %q", c.Choices[0].FinishReason)
	}
}

func TestChunkFromGemini(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content:      &genai.Content{Parts: []genai.Part{genai.Text("Hi")}},
		FinishReason: genai.FinishReasonStop,
	}}}
	chunk := chunkFromGemini("m", resp)
	if len(chunk.Choices) != 1 || chunk.Choices[0].Delta.Content != "Hi" || chunk.Choices[0].FinishReason != FinishReasonStop {
		t.Fatalf("unexpected chunk: %+v", chunk)
	}
}

func TestAPIKeyTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "gemini-key" {
			t.Errorf("x-goog-api-key = %q", got)
		}
	}))
	defer ts.Close()

	client := &http.Client{Transport: &apiKeyTransport{key: "gemini-key", base: http.DefaultTransport}}
	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if req.Header.Get("x-goog-api-key") != "" {
		t.Errorf("caller's request must not be modified")
	}
}

func TestGeminiSendStaticTimeout(t *testing.T) {
	keys := make(chan string, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("x-goog-api-key")
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer ts.Close()

	p, err := NewGeminiProvider(context.Background(), "gemini-key", "", ts.Client(), 100*time.Millisecond, option.WithEndpoint(ts.URL))
	if err != nil {
		t.Fatalf("NewGeminiProvider: %v", err)
	}
	defer p.Close()
	if p.modelName != DefaultGeminiModel || p.timeout != 100*time.Millisecond {
		t.Fatalf("provider not configured: model=%q timeout=%v", p.modelName, p.timeout)
	}

	start := time.Now()
	if _, err := p.SendStatic(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("static timeout not applied, took %v", elapsed)
	}
	select {
	case key := <-keys:
		if key != "gemini-key" {
			t.Errorf("request sent through shared client without key header, got %q", key)
		}
	default:
	}
}
