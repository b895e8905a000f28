// README: Place aggregation contracts: providers, queries and per-provider failures.
package places

import (
	"context"
	"errors"
	"fmt"

	"travelfinder/internal/types"
)

var ErrProviderFailed = errors.New("place provider failed")

// Provider is one nearby-place source.
type Provider interface {
	Name() string
	NearbyPlaces(ctx context.Context, center types.Point, radius int, language string, pageSize int) ([]types.Place, error)
}

type Query struct {
	Center   types.Point
	Radius   int
	Language string
	PageSize int
}

// ProviderError reports the failure of a single provider. It matches ErrProviderFailed and the cause.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("places: provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProviderFailed, e.Err}
}

// Result is the merged place set plus any provider that failed to contribute.
type Result struct {
	Places   []types.Place
	Failures []*ProviderError
}

// Err joins the provider failures, or returns nil when every provider answered.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// PlaceResult returns the serialized shape handed to the model.
func (r Result) PlaceResult() types.PlaceResult {
	places := r.Places
	if places == nil {
		places = []types.Place{}
	}
	return types.PlaceResult{Places: places}
}
