// README: Extractor runs the plan-info extraction call, caching successful structured results per request id.
package planinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"travelfinder/internal/ai"
	"travelfinder/internal/maps"
	"travelfinder/internal/modules/prompt"
	"travelfinder/internal/types"
)

const (
	DefaultTemplateID = "get_plan_info"
	unknownArea       = "N/A"
)

type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) ([]maps.GeocodeResult, error)
}

type Extractor struct {
	provider  ai.ChatProvider
	geocoder  Geocoder
	assembler *prompt.Assembler
	store     Store
	// inflight collapses concurrent extractions for the same request id.
	inflight singleflight.Group
}

func NewExtractor(provider ai.ChatProvider, geocoder Geocoder, assembler *prompt.Assembler, store Store) *Extractor {
	return &Extractor{provider: provider, geocoder: geocoder, assembler: assembler, store: store}
}

type outcome struct {
	info   PlanInfo
	source Source
}

// Extract returns the cached PlanInfo for req.RequestID or runs a fresh extraction. It always returns a
// usable PlanInfo: on failure the error is reported next to Default(), which is never cached.
func (e *Extractor) Extract(ctx context.Context, req Request) (PlanInfo, Source, error) {
	if req.RequestID != "" {
		info, ok, err := e.store.Get(ctx, req.RequestID)
		if err != nil {
			log.Printf("planinfo: cache get %s: %v", req.RequestID, err)
		}
		if ok {
			return info, SourceCache, nil
		}
	}

	key := req.RequestID
	if key == "" {
		return e.extract(ctx, req)
	}
	v, err, _ := e.inflight.Do(key, func() (any, error) {
		info, src, err := e.extract(ctx, req)
		return outcome{info: info, source: src}, err
	})
	out := v.(outcome)
	return out.info.Clone(), out.source, err
}

func (e *Extractor) extract(ctx context.Context, req Request) (PlanInfo, Source, error) {
	templateID := req.TemplateID
	if templateID == "" {
		templateID = DefaultTemplateID
	}
	tmpl, err := e.assembler.Registry().Get(templateID)
	if err != nil {
		return Default(), SourceDefault, fmt.Errorf("planinfo: %w", err)
	}

	system := tmpl.Render(map[string]string{prompt.PlaceholderArea: e.area(ctx, req.At)})
	messages := make([]ai.Message, 0, len(req.Conversation)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: system})
	messages = append(messages, req.Conversation...)

	completion, err := e.provider.SendStatic(ctx, messages, tmpl.Tools())
	if err != nil {
		return Default(), SourceDefault, fmt.Errorf("planinfo: extraction call: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Default(), SourceDefault, fmt.Errorf("planinfo: %w", ai.ErrEmptyCompletion)
	}

	msg := completion.Choices[0].Message
	switch {
	case len(msg.ToolCalls) > 0:
		var info PlanInfo
		if err := json.Unmarshal([]byte(msg.ToolCalls[0].Function.Arguments), &info); err != nil {
			return Default(), SourceDefault, fmt.Errorf("planinfo: decode tool arguments: %w", err)
		}
		if req.RequestID != "" {
			if err := e.store.Set(ctx, req.RequestID, info); err != nil {
				log.Printf("planinfo: cache set %s: %v", req.RequestID, err)
			}
		}
		return info, SourceExtracted, nil
	case msg.Content != "":
		return PlanInfo{Refinement: msg.Content}, SourceRefinement, nil
	default:
		return Default(), SourceDefault, fmt.Errorf("planinfo: neither tool call nor content: %w", ai.ErrEmptyCompletion)
	}
}

// area resolves the first reverse-geocoded address at p. Lookup failures degrade to "N/A".
func (e *Extractor) area(ctx context.Context, p types.Point) string {
	if e.geocoder == nil {
		return unknownArea
	}
	results, err := e.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		log.Printf("planinfo: reverse geocode %s: %v", p.Key(), err)
		return unknownArea
	}
	for _, r := range results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress
		}
	}
	return unknownArea
}
