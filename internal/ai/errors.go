package ai

import (
	"errors"
	"fmt"
)

// ErrUpstreamStatus is wrapped by every non-success HTTP answer from a chat backend.
var ErrUpstreamStatus = errors.New("upstream returned non-success status")

// ErrEmptyCompletion is returned when a completion carries no choices.
var ErrEmptyCompletion = errors.New("completion has no choices")

type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamStatus
}
