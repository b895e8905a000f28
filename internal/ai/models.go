package ai

import (
	"encoding/json"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FinishReasonStop marks the last chunk of a completed generation.
const FinishReasonStop = "stop"

// Message is one conversation turn as sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSchema describes a function the model may call.
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

type FunctionSchema struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Parameters is a JSON schema object, kept raw so it reaches the wire untouched.
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall is a model-issued request to run a named function.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name string `json:"name"`
	// Arguments is the JSON-encoded argument object exactly as the model produced it.
	Arguments string `json:"arguments"`
}

// ArgumentMap decodes Arguments. An empty argument string yields an empty map.
func (f FunctionCall) ArgumentMap() (map[string]any, error) {
	args := map[string]any{}
	if f.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(f.Arguments), &args); err != nil {
		return nil, fmt.Errorf("decode arguments of %s: %w", f.Name, err)
	}
	return args, nil
}

// ChatRequest is the upstream chat-completion request body.
type ChatRequest struct {
	Model    string       `json:"model,omitempty"`
	Messages []Message    `json:"messages"`
	Stream   bool         `json:"stream"`
	Tools    []ToolSchema `json:"tools,omitempty"`
}

// StreamChunk is one decoded `data:` frame of a streamed completion.
type StreamChunk struct {
	ID      string         `json:"id,omitempty"`
	Object  string         `json:"object,omitempty"`
	Model   string         `json:"model,omitempty"`
	Choices []StreamChoice `json:"choices"`
}

type StreamChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// StaticCompletion is a fully received, non-streamed completion.
type StaticCompletion struct {
	ID      string         `json:"id,omitempty"`
	Object  string         `json:"object,omitempty"`
	Model   string         `json:"model,omitempty"`
	Choices []StaticChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
}

type StaticChoice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

type AssistantMessage struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
