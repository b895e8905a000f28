package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"travelfinder/internal/ai"
	"travelfinder/internal/maps"
	"travelfinder/internal/modules/planinfo"
	"travelfinder/internal/modules/prompt"
	"travelfinder/internal/modules/relay"
	"travelfinder/internal/service"
	"travelfinder/internal/types"
)

type stubChat struct {
	gotReq     service.ChatRequest
	streamErr  error
	staticErr  error
	completion *ai.StaticCompletion
	planSource planinfo.Source
	planErr    error
}

func (s *stubChat) StreamCommand(_ context.Context, req service.ChatRequest, sink relay.Sink) (relay.Summary, error) {
	s.gotReq = req
	if s.streamErr != nil {
		_ = sink.Error(s.streamErr.Error())
		return relay.Summary{State: relay.StateTerminated, Events: 1}, s.streamErr
	}
	_ = sink.Data([]byte(`{"choices":[{"delta":{"content":"Hi"},"index":0}]}`))
	_ = sink.Data([]byte(`{"choices":[{"delta":{},"index":0,"finishReason":"stop","tokenLength":1}]}`))
	return relay.Summary{State: relay.StateTerminated, Text: "Hi", TokenLength: 1, Events: 2}, nil
}

func (s *stubChat) Post(ctx context.Context, req service.ChatRequest, sink relay.Sink) (relay.Summary, error) {
	return s.StreamCommand(ctx, req, sink)
}

func (s *stubChat) Command(_ context.Context, req service.ChatRequest) (*ai.StaticCompletion, error) {
	s.gotReq = req
	return s.completion, s.staticErr
}

func (s *stubChat) Hint(ctx context.Context, req service.ChatRequest) (*ai.StaticCompletion, error) {
	return s.Command(ctx, req)
}

func (s *stubChat) PlanInfo(_ context.Context, req service.ChatRequest) (planinfo.PlanInfo, planinfo.Source, error) {
	s.gotReq = req
	if s.planErr != nil {
		return planinfo.Default(), planinfo.SourceDefault, s.planErr
	}
	info := planinfo.Default()
	info.BudgetLevel = []string{"Luxury"}
	return info, s.planSource, nil
}

type stubMaps struct {
	gotRadius   int
	gotLanguage string
	gotPageSize int
	places      []types.Place
	geocode     []maps.GeocodeResult
	err         error
}

func (s *stubMaps) NearbyPlaces(_ context.Context, _ types.Point, radius int, language string, pageSize int) ([]types.Place, error) {
	s.gotRadius, s.gotLanguage, s.gotPageSize = radius, language, pageSize
	return s.places, s.err
}

func (s *stubMaps) Geocode(context.Context, string) ([]maps.GeocodeResult, error) {
	return s.geocode, s.err
}

func buildTestRouter(chat ChatService, m MapService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ch := NewChatHandler(chat)
	r.GET("/chat", ch.Prompt)
	r.POST("/chat/stream-command", ch.StreamCommand)
	r.POST("/chat/post", ch.Post)
	r.POST("/chat/command", ch.Command)
	r.POST("/chat/hint", ch.Hint)
	r.POST("/chat/plan-info", ch.PlanInfo)
	mh := NewMapHandler(m)
	r.GET("/map/near-point", mh.NearPoint)
	r.GET("/map/geocode", mh.Geocode)
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const chatBody = `{"requestId":"r1","systemId":"travel_assistant","messages":[{"role":"user","content":"coffee?"}],"latitude":25.03,"longitude":121.56}`

func TestStreamCommandWritesSSE(t *testing.T) {
	chat := &stubChat{}
	w := doRequest(buildTestRouter(chat, &stubMaps{}), http.MethodPost, "/chat/stream-command", chatBody)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if got := strings.Count(w.Body.String(), "data: "); got != 2 {
		t.Errorf("expected 2 frames, got %d: %s", got, w.Body.String())
	}
	if chat.gotReq.RequestID != "r1" || chat.gotReq.Latitude != 25.03 || len(chat.gotReq.Messages) != 1 {
		t.Errorf("request not bound: %+v", chat.gotReq)
	}
}

func TestPromptStreamsSingleUserTurn(t *testing.T) {
	chat := &stubChat{}
	r := buildTestRouter(chat, &stubMaps{})
	w := doRequest(r, http.MethodGet, "/chat?prompt=Best+night+market%3F", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if got := strings.Count(w.Body.String(), "data: "); got != 2 {
		t.Errorf("expected 2 frames, got %d", got)
	}
	msgs := chat.gotReq.Messages
	if len(msgs) != 1 || msgs[0].Role != ai.RoleUser || msgs[0].Content != "Best night market?" {
		t.Errorf("unexpected conversation: %+v", msgs)
	}

	for _, path := range []string{"/chat", "/chat?prompt=%20%20"} {
		if w := doRequest(r, http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestPostStreamErrorIsEvent(t *testing.T) {
	chat := &stubChat{streamErr: errors.New("upstream down")}
	w := doRequest(buildTestRouter(chat, &stubMaps{}), http.MethodPost, "/chat/post", chatBody)
	if w.Code != http.StatusOK {
		t.Fatalf("headers were already sent, expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "event: error\ndata: {\"error\":\"upstream down\"}") {
		t.Errorf("missing error event: %q", w.Body.String())
	}
}

func TestChatInvalidJSON(t *testing.T) {
	r := buildTestRouter(&stubChat{}, &stubMaps{})
	for _, path := range []string{"/chat/stream-command", "/chat/command", "/chat/hint", "/chat/plan-info"} {
		if w := doRequest(r, http.MethodPost, path, "{bad"); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestCommandErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("service: %w", service.ErrInvalidRequest), http.StatusBadRequest},
		{"template", fmt.Errorf("prompt: %w", prompt.ErrTemplateNotFound), http.StatusNotFound},
		{"upstream", &ai.StatusError{Status: 503, Body: "busy"}, http.StatusBadGateway},
		{"timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(buildTestRouter(&stubChat{staticErr: tt.err}, &stubMaps{}), http.MethodPost, "/chat/command", chatBody)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d (%s)", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHintReturnsCompletion(t *testing.T) {
	chat := &stubChat{completion: &ai.StaticCompletion{ID: "c1", Choices: []ai.StaticChoice{{
		Message: ai.AssistantMessage{Role: ai.RoleAssistant, Content: "Visit the museum first."},
	}}}}
	w := doRequest(buildTestRouter(chat, &stubMaps{}), http.MethodPost, "/chat/hint", chatBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got ai.StaticCompletion
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "c1" || got.Choices[0].Message.Content != "Visit the museum first." {
		t.Errorf("unexpected completion: %+v", got)
	}
}

func TestPlanInfo(t *testing.T) {
	w := doRequest(buildTestRouter(&stubChat{planSource: planinfo.SourceCache}, &stubMaps{}), http.MethodPost, "/chat/plan-info", chatBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if src := w.Header().Get(PlanInfoSourceHeader); src != "cache" {
		t.Errorf("source header = %q", src)
	}
	if !strings.Contains(w.Body.String(), `"budget_level":"Luxury"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestPlanInfoDegradedStillAnswers(t *testing.T) {
	w := doRequest(buildTestRouter(&stubChat{planErr: errors.New("model down")}, &stubMaps{}), http.MethodPost, "/chat/plan-info", chatBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if src := w.Header().Get(PlanInfoSourceHeader); src != "default" {
		t.Errorf("source header = %q", src)
	}
	if !strings.Contains(w.Body.String(), `"budget_level":"Moderate"`) {
		t.Errorf("expected default plan info, got %s", w.Body.String())
	}
}

func TestNearPoint(t *testing.T) {
	m := &stubMaps{places: []types.Place{
		{ID: "far", Name: "Far", Location: types.Point{Lat: 25.10, Lng: 121.56}},
		{ID: "near", Name: "Near", Location: types.Point{Lat: 25.031, Lng: 121.56}},
		{ID: "near", Name: "Near", Location: types.Point{Lat: 25.031, Lng: 121.56}},
	}}
	w := doRequest(buildTestRouter(&stubChat{}, m), http.MethodGet, "/map/near-point?latitude=25.03&longitude=121.56", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if m.gotRadius != defaultRadius || m.gotLanguage != defaultLanguage || m.gotPageSize != defaultPageSize {
		t.Errorf("defaults not applied: %d %q %d", m.gotRadius, m.gotLanguage, m.gotPageSize)
	}
	var got types.PlaceResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Places) != 2 || got.Places[0].ID != "near" {
		t.Errorf("expected deduplicated places nearest first, got %+v", got.Places)
	}
}

func TestNearPointParams(t *testing.T) {
	m := &stubMaps{}
	r := buildTestRouter(&stubChat{}, m)
	w := doRequest(r, http.MethodGet, "/map/near-point?latitude=1&longitude=2&radius=300&pageSize=5&languageCode=zh-TW", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if m.gotRadius != 300 || m.gotPageSize != 5 || m.gotLanguage != "zh-TW" {
		t.Errorf("params not forwarded: %d %d %q", m.gotRadius, m.gotPageSize, m.gotLanguage)
	}
	if w.Body.String() != `{"places":[]}` {
		t.Errorf("empty result must be an empty list, got %s", w.Body.String())
	}

	for _, q := range []string{"latitude=x&longitude=2", "latitude=91&longitude=2", "latitude=1", "latitude=1&longitude=2&radius=-5", "latitude=1&longitude=2&pageSize=abc"} {
		if w := doRequest(r, http.MethodGet, "/map/near-point?"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestNearPointProviderFailure(t *testing.T) {
	w := doRequest(buildTestRouter(&stubChat{}, &stubMaps{err: errors.New("quota")}), http.MethodGet, "/map/near-point?latitude=1&longitude=2", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestGeocode(t *testing.T) {
	m := &stubMaps{geocode: []maps.GeocodeResult{{FormattedAddress: "Taipei 101", Location: types.Point{Lat: 25.0339, Lng: 121.5645}}}}
	r := buildTestRouter(&stubChat{}, m)
	w := doRequest(r, http.MethodGet, "/map/geocode?address=Taipei+101", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"formattedAddress":"Taipei 101"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	if w := doRequest(r, http.MethodGet, "/map/geocode", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing address: expected 400, got %d", w.Code)
	}
}
