// README: ChatService wires place context, prompts, providers, relay, tools and plan-info extraction per request.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"travelfinder/internal/ai"
	"travelfinder/internal/modules/places"
	"travelfinder/internal/modules/planinfo"
	"travelfinder/internal/modules/prompt"
	"travelfinder/internal/modules/relay"
	"travelfinder/internal/modules/tools"
	"travelfinder/internal/types"
)

// Place context fetched for every command.
const (
	contextRadiusMeters = 1000
	contextLanguage     = "en-us"
	contextPageSize     = 20
)

// HintTemplateID is the template used to review travel plans.
const HintTemplateID = "gis_helper_3"

type PlaceAggregator interface {
	NearbyPlaces(ctx context.Context, q places.Query) (places.Result, error)
}

type Deps struct {
	Provider   ai.ChatProvider
	Places     PlaceAggregator
	// HintPlaces supplies the nearby places reviewed by Hint.
	HintPlaces places.Provider
	Assembler  *prompt.Assembler
	Relay      *relay.Relay
	Tools      *tools.Dispatcher
	PlanInfo   *planinfo.Extractor
}

type ChatService struct {
	provider   ai.ChatProvider
	places     PlaceAggregator
	hintPlaces places.Provider
	assembler  *prompt.Assembler
	relay      *relay.Relay
	tools      *tools.Dispatcher
	planInfo   *planinfo.Extractor
}

func NewChatService(d Deps) *ChatService {
	return &ChatService{
		provider:   d.Provider,
		places:     d.Places,
		hintPlaces: d.HintPlaces,
		assembler:  d.Assembler,
		relay:      d.Relay,
		tools:      d.Tools,
		planInfo:   d.PlanInfo,
	}
}

func tracer() trace.Tracer {
	return otel.Tracer("travelfinder/service")
}

func startSpan(ctx context.Context, name string, req ChatRequest) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, trace.WithAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("request.system_id", req.SystemID),
		attribute.Int("request.messages", len(req.Messages)),
	))
}

func spanFail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func validate(req ChatRequest) error {
	if !req.Point().Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidRequest)
	}
	return nil
}

// contextMessages aggregates nearby places and assembles the full message list for req.
func (s *ChatService) contextMessages(ctx context.Context, req ChatRequest) ([]ai.Message, []ai.ToolSchema, error) {
	res, err := s.places.NearbyPlaces(ctx, places.Query{
		Center:   req.Point(),
		Radius:   contextRadiusMeters,
		Language: contextLanguage,
		PageSize: contextPageSize,
	})
	if err != nil {
		return nil, nil, err
	}
	return s.assembler.Assemble(req.SystemID, res.PlaceResult(), req.Messages, nil)
}

// StreamCommand streams a place-aware chat answer to sink. Failures before the upstream stream opens
// are also delivered to sink as an error event.
func (s *ChatService) StreamCommand(ctx context.Context, req ChatRequest, sink relay.Sink) (relay.Summary, error) {
	req = req.withRequestID()
	ctx, span := startSpan(ctx, "StreamCommand", req)
	defer span.End()

	if err := validate(req); err != nil {
		return relay.Summary{}, reportToSink(sink, err)
	}
	messages, _, err := s.contextMessages(ctx, req)
	if err != nil {
		spanFail(span, err, "failed to build context")
		return relay.Summary{}, reportToSink(sink, err)
	}
	return s.stream(ctx, span, messages, sink)
}

// Post streams a plain chat answer: system prompt plus the caller's conversation, no place context.
func (s *ChatService) Post(ctx context.Context, req ChatRequest, sink relay.Sink) (relay.Summary, error) {
	req = req.withRequestID()
	ctx, span := startSpan(ctx, "Post", req)
	defer span.End()

	messages, _ := s.assembler.Prepend(req.SystemID, nil, req.Messages)
	return s.stream(ctx, span, messages, sink)
}

func (s *ChatService) stream(ctx context.Context, span trace.Span, messages []ai.Message, sink relay.Sink) (relay.Summary, error) {
	body, err := s.provider.SendStream(ctx, messages, nil)
	if err != nil {
		spanFail(span, err, "upstream stream failed")
		return relay.Summary{}, reportToSink(sink, err)
	}
	sum, err := s.relay.Run(ctx, body, sink)
	span.SetAttributes(
		attribute.Int("stream.events", sum.Events),
		attribute.Int("stream.token_length", sum.TokenLength),
		attribute.Int("stream.malformed", sum.Malformed),
	)
	if err != nil {
		spanFail(span, err, "relay failed")
		return sum, err
	}
	span.SetStatus(codes.Ok, "stream completed")
	return sum, nil
}

// Command answers with a static completion, running any recognised tool call at the request's position.
func (s *ChatService) Command(ctx context.Context, req ChatRequest) (*ai.StaticCompletion, error) {
	req = req.withRequestID()
	ctx, span := startSpan(ctx, "Command", req)
	defer span.End()

	if err := validate(req); err != nil {
		return nil, err
	}
	messages, toolSchemas, err := s.contextMessages(ctx, req)
	if err != nil {
		spanFail(span, err, "failed to build context")
		return nil, err
	}
	return s.staticWithTools(ctx, span, messages, toolSchemas, req.Point())
}

// Hint reviews the travel plan carried as a JSON array in the first message.
func (s *ChatService) Hint(ctx context.Context, req ChatRequest) (*ai.StaticCompletion, error) {
	req = req.withRequestID()
	ctx, span := startSpan(ctx, "Hint", req)
	defer span.End()

	if err := validate(req); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: hint needs the plan as first message", ErrInvalidRequest)
	}
	var plans []Plan
	if err := json.Unmarshal([]byte(req.Messages[0].Content), &plans); err != nil {
		return nil, fmt.Errorf("%w: decode plans: %v", ErrInvalidRequest, err)
	}

	tmpl, err := s.assembler.Registry().Get(HintTemplateID)
	if err != nil {
		spanFail(span, err, "hint template missing")
		return nil, err
	}

	nearby, err := s.hintPlaces.NearbyPlaces(ctx, req.Point(), contextRadiusMeters, contextLanguage, contextPageSize)
	if err != nil {
		spanFail(span, err, "nearby places failed")
		return nil, &places.ProviderError{Provider: s.hintPlaces.Name(), Err: err}
	}
	travelLocations, err := json.Marshal(places.Result{Places: nearby}.PlaceResult())
	if err != nil {
		return nil, fmt.Errorf("hint: encode places: %w", err)
	}
	hint, err := json.Marshal(hintPayload{Plans: plans})
	if err != nil {
		return nil, fmt.Errorf("hint: encode plans: %w", err)
	}

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: tmpl.Render(map[string]string{prompt.PlaceholderTravelLocations: string(travelLocations)})},
		{Role: ai.RoleUser, Content: string(hint)},
	}
	return s.staticWithTools(ctx, span, messages, tmpl.Tools(), req.Point())
}

func (s *ChatService) staticWithTools(ctx context.Context, span trace.Span, messages []ai.Message, toolSchemas []ai.ToolSchema, at types.Point) (*ai.StaticCompletion, error) {
	completion, err := s.provider.SendStatic(ctx, messages, toolSchemas)
	if err != nil {
		spanFail(span, err, "upstream call failed")
		return nil, err
	}
	out, err := s.tools.Execute(ctx, completion, at)
	if err != nil {
		spanFail(span, err, "tool execution failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("completion.choices", len(out.Choices)))
	span.SetStatus(codes.Ok, "completed")
	return out, nil
}

// PlanInfo extracts travel preferences for req. It always yields a usable PlanInfo; err reports why the
// default was returned.
func (s *ChatService) PlanInfo(ctx context.Context, req ChatRequest) (planinfo.PlanInfo, planinfo.Source, error) {
	req = req.withRequestID()
	ctx, span := startSpan(ctx, "PlanInfo", req)
	defer span.End()

	info, src, err := s.planInfo.Extract(ctx, planinfo.Request{
		RequestID:    req.RequestID,
		At:           req.Point(),
		Conversation: req.Messages,
	})
	span.SetAttributes(attribute.String("planinfo.source", string(src)))
	if err != nil {
		spanFail(span, err, "plan info degraded to default")
		log.Printf("service: plan info %s: %v", req.RequestID, err)
	}
	return info, src, err
}

// reportToSink sends err as an error event and returns it.
func reportToSink(sink relay.Sink, err error) error {
	if werr := sink.Error(err.Error()); werr != nil {
		log.Printf("service: write error event: %v", werr)
	}
	return err
}
