// README: Chat endpoints; streaming routes answer with text/event-stream, the rest with JSON.
package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"travelfinder/internal/ai"
	"travelfinder/internal/modules/planinfo"
	"travelfinder/internal/modules/relay"
	"travelfinder/internal/service"
)

// PlanInfoSourceHeader reports where a plan-info answer came from (cache, extracted, refinement, default).
const PlanInfoSourceHeader = "X-Plan-Info-Source"

// ChatService is the subset of service.ChatService the handlers call.
type ChatService interface {
	StreamCommand(ctx context.Context, req service.ChatRequest, sink relay.Sink) (relay.Summary, error)
	Post(ctx context.Context, req service.ChatRequest, sink relay.Sink) (relay.Summary, error)
	Command(ctx context.Context, req service.ChatRequest) (*ai.StaticCompletion, error)
	Hint(ctx context.Context, req service.ChatRequest) (*ai.StaticCompletion, error)
	PlanInfo(ctx context.Context, req service.ChatRequest) (planinfo.PlanInfo, planinfo.Source, error)
}

type ChatHandler struct {
	chat ChatService
}

func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type streamFunc func(ctx context.Context, req service.ChatRequest, sink relay.Sink) (relay.Summary, error)

func bindChat(c *gin.Context) (service.ChatRequest, bool) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return req, false
	}
	return req, true
}

// stream answers over SSE. Once the headers are out, failures reach the client as error events only.
func (h *ChatHandler) stream(c *gin.Context, name string, fn streamFunc) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	h.streamRequest(c, name, req, fn)
}

func (h *ChatHandler) streamRequest(c *gin.Context, name string, req service.ChatRequest, fn streamFunc) {
	sink := relay.NewSSEWriter(c.Writer)
	summary, err := fn(c.Request.Context(), req, sink)
	if err != nil {
		log.Printf("http: %s ended with error after %d events: %v", name, summary.Events, err)
		return
	}
	log.Printf("http: %s done: %d events, %d tokens", name, summary.Events, summary.TokenLength)
}

func (h *ChatHandler) StreamCommand(c *gin.Context) {
	h.stream(c, "stream-command", h.chat.StreamCommand)
}

func (h *ChatHandler) Post(c *gin.Context) {
	h.stream(c, "post", h.chat.Post)
}

// Prompt streams a reply to a single user turn taken from the prompt query parameter.
func (h *ChatHandler) Prompt(c *gin.Context) {
	prompt := strings.TrimSpace(c.Query("prompt"))
	if prompt == "" {
		writeError(c, http.StatusBadRequest, "prompt is required")
		return
	}
	req := service.ChatRequest{Messages: []ai.Message{{Role: ai.RoleUser, Content: prompt}}}
	h.streamRequest(c, "prompt", req, h.chat.Post)
}

func (h *ChatHandler) Command(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	completion, err := h.chat.Command(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, completion)
}

func (h *ChatHandler) Hint(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	completion, err := h.chat.Hint(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, completion)
}

// PlanInfo always answers with a usable PlanInfo; degraded extractions fall back to defaults.
func (h *ChatHandler) PlanInfo(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	// Errors are logged by the service and already folded into the default answer.
	info, src, _ := h.chat.PlanInfo(c.Request.Context(), req)
	c.Header(PlanInfoSourceHeader, string(src))
	writeJSON(c, http.StatusOK, info)
}
