// README: Relay decodes an upstream event stream line by line and re-emits normalized chunks.
package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"travelfinder/internal/ai"
)

const maxLineSize = 1 << 20

type Relay struct {
	counter      ai.TokenCounter
	maxMalformed int
}

type Option func(*Relay)

// WithMaxMalformed overrides MaxConsecutiveMalformed.
func WithMaxMalformed(n int) Option {
	return func(r *Relay) {
		if n >= 0 {
			r.maxMalformed = n
		}
	}
}

func New(counter ai.TokenCounter, opts ...Option) *Relay {
	r := &Relay{counter: counter, maxMalformed: MaxConsecutiveMalformed}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stream is the per-request state of one relay run.
type stream struct {
	relay       *Relay
	sink        Sink
	state       State
	text        strings.Builder
	events      int
	malformed   int
	consecutive int
	tokens      int
}

// Run relays upstream to sink until a [DONE] sentinel, end of input, a fatal error or ctx cancellation.
// upstream is always closed, and closed early when ctx is cancelled so a blocked read returns.
// Every run that still has a writable sink ends with either a terminal chunk or an error event.
func (r *Relay) Run(ctx context.Context, upstream io.ReadCloser, sink Sink) (Summary, error) {
	defer upstream.Close()
	stop := context.AfterFunc(ctx, func() { upstream.Close() })
	defer stop()

	s := &stream{relay: r, sink: sink, state: StateIdle}
	err := s.consume(ctx, upstream)
	return s.summary(), err
}

func (s *stream) consume(ctx context.Context, upstream io.Reader) error {
	sc := bufio.NewScanner(upstream)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	for sc.Scan() {
		payload, ok := framePayload(sc.Text())
		if !ok {
			continue
		}
		s.state = StateStreaming

		if payload == doneSentinel {
			return s.terminate()
		}
		if err := s.handleChunk(payload); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		s.state = StateTerminated
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return s.fail(fmt.Errorf("relay: read upstream: %w", err))
	}
	if s.state != StateTerminated {
		return s.fail(ErrStreamTruncated)
	}
	return nil
}

// framePayload strips the SSE field prefix. ok is false for lines carrying nothing to relay.
func framePayload(line string) (string, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return "", false
	case strings.HasPrefix(line, ":"):
		return "", false
	case strings.HasPrefix(line, "data:"):
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		return line, line != ""
	case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
		return "", false
	default:
		return line, true
	}
}

func (s *stream) handleChunk(payload string) error {
	var in ai.StreamChunk
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return s.malformedFrame(err)
	}
	s.consecutive = 0

	out := Chunk{ID: in.ID, Model: in.Model, Choices: make([]Choice, 0, len(in.Choices))}
	stopped := false
	for _, c := range in.Choices {
		if c.Delta.Content != "" {
			s.text.WriteString(c.Delta.Content)
		}
		oc := Choice{
			Delta:        Delta{Role: c.Delta.Role, Content: c.Delta.Content},
			Index:        c.Index,
			FinishReason: c.FinishReason,
		}
		if c.FinishReason == ai.FinishReasonStop {
			n := s.countTokens()
			oc.TokenLength = &n
			stopped = true
		}
		out.Choices = append(out.Choices, oc)
	}

	if err := s.emit(out); err != nil {
		return err
	}
	if stopped {
		s.state = StateTerminated
	}
	return nil
}

func (s *stream) malformedFrame(cause error) error {
	s.malformed++
	s.consecutive++
	log.Printf("relay: decode chunk: %v", cause)
	if s.consecutive > s.relay.maxMalformed {
		return s.fail(fmt.Errorf("%w: %d consecutive undecodable frames", ErrMalformedStream, s.consecutive))
	}
	if err := s.sink.Error(fmt.Sprintf("malformed upstream frame: %v", cause)); err != nil {
		return fmt.Errorf("relay: write error event: %w", err)
	}
	return nil
}

// terminate emits the synthesized terminal chunk for the [DONE] sentinel.
func (s *stream) terminate() error {
	n := s.countTokens()
	out := Chunk{Choices: []Choice{{
		FinishReason: ai.FinishReasonStop,
		TokenLength:  &n,
	}}}
	if err := s.emit(out); err != nil {
		return err
	}
	s.state = StateTerminated
	return nil
}

// fail reports err to the client as an error event and ends the run.
func (s *stream) fail(err error) error {
	s.state = StateTerminated
	log.Printf("relay: stream failed: %v", err)
	if werr := s.sink.Error(err.Error()); werr != nil {
		return errors.Join(err, fmt.Errorf("relay: write error event: %w", werr))
	}
	return err
}

func (s *stream) emit(c Chunk) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("relay: marshal chunk: %w", err)
	}
	if err := s.sink.Data(body); err != nil {
		return fmt.Errorf("relay: write chunk: %w", err)
	}
	s.events++
	return nil
}

// countTokens counts the whole accumulated text, never only the latest delta.
func (s *stream) countTokens() int {
	if s.relay.counter == nil {
		return 0
	}
	s.tokens = s.relay.counter.Count(s.text.String())
	return s.tokens
}

func (s *stream) summary() Summary {
	return Summary{
		State:       s.state,
		Text:        s.text.String(),
		TokenLength: s.tokens,
		Events:      s.events,
		Malformed:   s.malformed,
	}
}
