// README: Dispatcher runs recognised tool calls of a static completion and inlines their results.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"travelfinder/internal/ai"
	"travelfinder/internal/maps"
	"travelfinder/internal/types"
)

// Search limits of the feature query.
const (
	searchRadiusMeters = 5000
	searchOffset       = 0
)

type FeatureQuerier interface {
	Query(ctx context.Context, q maps.FeatureQuery) (json.RawMessage, error)
}

type Dispatcher struct {
	querier FeatureQuerier
}

func NewDispatcher(querier FeatureQuerier) *Dispatcher {
	return &Dispatcher{querier: querier}
}

// Execute returns a copy of completion in which every choice carrying a recognised tool call has its
// content replaced by the tool result. Unrecognised tools are left untouched. The input is not modified.
func (d *Dispatcher) Execute(ctx context.Context, completion *ai.StaticCompletion, at types.Point) (*ai.StaticCompletion, error) {
	if completion == nil {
		return nil, nil
	}
	out := *completion
	out.Choices = make([]ai.StaticChoice, len(completion.Choices))
	copy(out.Choices, completion.Choices)

	for i, choice := range out.Choices {
		var results []json.RawMessage
		for _, tc := range choice.Message.ToolCalls {
			call, err := Parse(tc)
			if errors.Is(err, ErrUnknownTool) {
				log.Printf("tools: skipping %v", err)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("tools: parse %s: %w", tc.Function.Name, err)
			}
			res, err := d.run(ctx, call, at)
			if err != nil {
				return nil, err
			}
			results = append(results, res)
		}

		switch len(results) {
		case 0:
		case 1:
			out.Choices[i].Message.Content = string(results[0])
		default:
			joined, err := json.Marshal(results)
			if err != nil {
				return nil, fmt.Errorf("tools: encode results: %w", err)
			}
			out.Choices[i].Message.Content = string(joined)
		}
	}
	return &out, nil
}

func (d *Dispatcher) run(ctx context.Context, call Call, at types.Point) (json.RawMessage, error) {
	switch c := call.(type) {
	case QueryFeature:
		return d.queryFeature(ctx, c, at)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.ToolName())
	}
}

type pointGeometry struct {
	X                float64          `json:"x"`
	Y                float64          `json:"y"`
	SpatialReference spatialReference `json:"spatialReference"`
}

type spatialReference struct {
	WKID int `json:"wkid"`
}

func (d *Dispatcher) queryFeature(ctx context.Context, q QueryFeature, at types.Point) (json.RawMessage, error) {
	if d.querier == nil {
		return nil, errors.New("tools: no feature querier configured")
	}
	geometry, err := json.Marshal(pointGeometry{
		X:                at.Lng,
		Y:                at.Lat,
		SpatialReference: spatialReference{WKID: types.WGS84},
	})
	if err != nil {
		return nil, fmt.Errorf("tools: encode geometry: %w", err)
	}

	res, err := d.querier.Query(ctx, maps.FeatureQuery{
		Geometry:       geometry,
		SpatialRef:     types.WGS84,
		Where:          q.Where(),
		DistanceMeters: searchRadiusMeters,
		Offset:         searchOffset,
		Limit:          q.RecordCount,
	})
	if err != nil {
		return nil, fmt.Errorf("tools: %s: %w", QueryFeatureName, err)
	}
	return res, nil
}
