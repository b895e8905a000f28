package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Sink receives the re-framed events of one stream.
type Sink interface {
	Data(payload []byte) error
	Error(message string) error
}

// SSEWriter writes server-sent events and flushes after each one.
type SSEWriter struct {
	w     io.Writer
	flush func()
	mu    sync.Mutex
}

// NewSSEWriter sets the event-stream headers on w. Headers must not have been written yet.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	var flushFn func()
	if f, ok := w.(http.Flusher); ok {
		flushFn = f.Flush
	}
	return &SSEWriter{w: w, flush: flushFn}
}

// NewSSEStreamWriter wraps a plain writer, without headers or flushing.
func NewSSEStreamWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{w: w}
}

func (s *SSEWriter) Data(payload []byte) error {
	return s.write(fmt.Sprintf("data: %s\n\n", payload))
}

func (s *SSEWriter) Error(message string) error {
	body, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Errorf("relay: marshal error event: %w", err)
	}
	return s.write(fmt.Sprintf("event: error\ndata: %s\n\n", body))
}

func (s *SSEWriter) write(frame string) error {
	if s == nil || s.w == nil {
		return errors.New("relay: stream writer not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}
