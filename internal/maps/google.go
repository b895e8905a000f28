// README: Google Maps Platform collaborator: nearby search, reverse geocode and forward geocode.
package maps

import (
	"context"
	"fmt"
	"net/http"

	"googlemaps.github.io/maps"

	"travelfinder/internal/types"
)

// GeocodeResult is one geocoder match.
type GeocodeResult struct {
	FormattedAddress string      `json:"formattedAddress"`
	Location         types.Point `json:"location"`
	PlaceID          string      `json:"placeId,omitempty"`
	Types            []string    `json:"types,omitempty"`
}

// GoogleClient handles interactions with Google Places and Geocoding APIs.
type GoogleClient struct {
	client *maps.Client
}

// NewGoogleClient creates a client with the given API key. extra options (e.g. maps.WithBaseURL)
// are applied after the key and HTTP client.
func NewGoogleClient(apiKey string, httpClient *http.Client, extra ...maps.ClientOption) (*GoogleClient, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, maps.WithHTTPClient(httpClient))
	}
	opts = append(opts, extra...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleClient{client: client}, nil
}

// Name identifies the provider in logs and Place.Source.
func (g *GoogleClient) Name() string { return "google" }

// NearbyPlaces lists places within radius metres of center, truncated to pageSize.
func (g *GoogleClient) NearbyPlaces(ctx context.Context, center types.Point, radius int, language string, pageSize int) ([]types.Place, error) {
	r := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: center.Lat, Lng: center.Lng},
		Radius:   uint(radius),
		Language: language,
	}
	resp, err := g.client.NearbySearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	results := make([]types.Place, 0, len(resp.Results))
	for _, result := range resp.Results {
		p := types.Place{
			ID:       result.PlaceID,
			Name:     result.Name,
			Address:  result.FormattedAddress,
			Location: types.Point{Lat: result.Geometry.Location.Lat, Lng: result.Geometry.Location.Lng},
			Types:    result.Types,
			Rating:   result.Rating,
			Source:   g.Name(),
		}
		if p.Address == "" {
			p.Address = result.Vicinity
		}
		if len(result.Types) > 0 {
			p.Category = result.Types[0]
		}
		results = append(results, p)
		if pageSize > 0 && len(results) >= pageSize {
			break
		}
	}
	return results, nil
}

// ReverseGeocode returns the addresses at p, most specific first.
func (g *GoogleClient) ReverseGeocode(ctx context.Context, p types.Point) ([]GeocodeResult, error) {
	res, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return nil, fmt.Errorf("reverse geocode error: %w", err)
	}
	return convertGeocode(res), nil
}

// Geocode resolves a free-form address.
func (g *GoogleClient) Geocode(ctx context.Context, address string) ([]GeocodeResult, error) {
	res, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return nil, fmt.Errorf("geocode error: %w", err)
	}
	return convertGeocode(res), nil
}

func convertGeocode(in []maps.GeocodingResult) []GeocodeResult {
	out := make([]GeocodeResult, 0, len(in))
	for _, r := range in {
		out = append(out, GeocodeResult{
			FormattedAddress: r.FormattedAddress,
			Location:         types.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
			PlaceID:          r.PlaceID,
			Types:            r.Types,
		})
	}
	return out
}
