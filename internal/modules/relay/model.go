// README: Outbound chunk shape and relay state for the streaming path.
package relay

import "errors"

var (
	ErrMalformedStream = errors.New("malformed upstream stream")
	ErrStreamTruncated = errors.New("upstream stream ended without a terminal event")
)

// doneSentinel terminates an upstream stream.
const doneSentinel = "[DONE]"

// MaxConsecutiveMalformed is how many undecodable frames in a row are tolerated.
const MaxConsecutiveMalformed = 3

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Chunk is the camelCase payload sent to the client.
type Chunk struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Delta        Delta  `json:"delta"`
	Index        int    `json:"index"`
	FinishReason string `json:"finishReason,omitempty"`
	// TokenLength is set on terminal choices only, including a count of zero.
	TokenLength *int `json:"tokenLength,omitempty"`
}

type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Summary describes a finished relay run.
type Summary struct {
	State       State
	Text        string
	TokenLength int
	Events      int
	Malformed   int
}
