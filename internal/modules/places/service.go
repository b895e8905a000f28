// README: Aggregator queries every provider concurrently and unions the results by identity key.
package places

import (
	"cmp"
	"context"
	"log"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"travelfinder/internal/types"
)

type Aggregator struct {
	providers []Provider
	timeout   time.Duration
	// strict fails the whole aggregation when any provider fails.
	strict bool
}

func NewAggregator(timeout time.Duration, strict bool, providers ...Provider) *Aggregator {
	return &Aggregator{providers: providers, timeout: timeout, strict: strict}
}

// NearbyPlaces waits for every provider and merges their places. In the default partial mode a failing
// provider contributes an empty set and is listed in Result.Failures; in strict mode the joined failures
// are returned as the error.
func (a *Aggregator) NearbyPlaces(ctx context.Context, q Query) (Result, error) {
	ctx, span := otel.Tracer("travelfinder/places").Start(ctx, "NearbyPlaces", trace.WithAttributes(
		attribute.String("center", q.Center.Key()),
		attribute.Int("radius", q.Radius),
		attribute.Int("providers", len(a.providers)),
	))
	defer span.End()

	sets := make([][]types.Place, len(a.providers))
	failures := make([]*ProviderError, len(a.providers))

	// Goroutines always return nil; failures are collected per provider.
	var g errgroup.Group
	for i, p := range a.providers {
		g.Go(func() error {
			pctx := ctx
			if a.timeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(ctx, a.timeout)
				defer cancel()
			}
			got, err := p.NearbyPlaces(pctx, q.Center, q.Radius, q.Language, q.PageSize)
			if err != nil {
				failures[i] = &ProviderError{Provider: p.Name(), Err: err}
				return nil
			}
			sets[i] = got
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Places:   Merge(sets...),
		Failures: lo.Compact(failures),
	}
	span.SetAttributes(attribute.Int("places", len(res.Places)))

	if err := res.Err(); err != nil {
		span.RecordError(err)
		log.Printf("places: %d of %d providers failed: %v", len(res.Failures), len(a.providers), err)
		if a.strict {
			span.SetStatus(codes.Error, "place provider failed")
			return Result{}, err
		}
	}
	return res, nil
}

// Merge unions place sets in order. The first place seen for an identity key wins.
func Merge(sets ...[]types.Place) []types.Place {
	return lo.UniqBy(lo.Flatten(sets), func(p types.Place) string {
		return p.Key()
	})
}

// SortByDistance orders places nearest to center first, keeping provider order for equal distances.
// The slice is sorted in place.
func SortByDistance(center types.Point, places []types.Place) {
	type ranked struct {
		place types.Place
		km    float64
	}
	rs := make([]ranked, len(places))
	for i, p := range places {
		rs[i] = ranked{place: p, km: center.DistanceKm(p.Location)}
	}
	slices.SortStableFunc(rs, func(a, b ranked) int {
		return cmp.Compare(a.km, b.km)
	})
	for i, r := range rs {
		places[i] = r.place
	}
}
