package service

import (
	"errors"

	"github.com/google/uuid"

	"travelfinder/internal/ai"
	"travelfinder/internal/types"
)

var ErrInvalidRequest = errors.New("invalid request")

// ChatRequest is the body shared by every chat operation.
type ChatRequest struct {
	RequestID string       `json:"requestId"`
	SystemID  string       `json:"systemId"`
	Messages  []ai.Message `json:"messages"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
}

func (r ChatRequest) Point() types.Point {
	return types.Point{Lat: r.Latitude, Lng: r.Longitude}
}

// withRequestID assigns a random id when the client sent none.
func (r ChatRequest) withRequestID() ChatRequest {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	return r
}

// Plan is one item of a travel plan reviewed by Hint.
type Plan struct {
	FormattedAddress string  `json:"formattedAddress"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Name             string  `json:"name"`
	Number           int     `json:"number"`
	SuggestReason    string  `json:"suggestReason"`
	Hint             string  `json:"hint"`
	PrimaryType      string  `json:"primaryType"`
	Duration         float64 `json:"duration"`
	Day              int     `json:"day"`
}

type hintPayload struct {
	Plans []Plan `json:"plans"`
}
