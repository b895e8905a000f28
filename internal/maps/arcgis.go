package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"travelfinder/internal/types"
)

// arcgisMaxPageSize is the largest page the places service accepts.
const arcgisMaxPageSize = 20

var ErrArcGIS = errors.New("arcgis request failed")

// ArcGISClient talks to the ArcGIS places service and a feature layer's query endpoint.
type ArcGISClient struct {
	apiKey     string
	placesURL  string
	featureURL string
	http       *http.Client
}

func NewArcGISClient(apiKey, placesURL, featureURL string, httpClient *http.Client) *ArcGISClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ArcGISClient{
		apiKey:     apiKey,
		placesURL:  strings.TrimRight(placesURL, "/"),
		featureURL: strings.TrimRight(featureURL, "/"),
		http:       httpClient,
	}
}

func (c *ArcGISClient) Name() string { return "arcgis" }

type arcgisPlacesResponse struct {
	Results []struct {
		PlaceID  string `json:"placeId"`
		Name     string `json:"name"`
		Location struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"location"`
		Categories []struct {
			CategoryID string `json:"categoryId"`
			Label      string `json:"label"`
		} `json:"categories"`
	} `json:"results"`
	Error *arcgisError `json:"error"`
}

type arcgisError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NearbyPlaces queries /places/near-point. The places service has no language parameter, so
// language is ignored.
func (c *ArcGISClient) NearbyPlaces(ctx context.Context, center types.Point, radius int, _ string, pageSize int) ([]types.Place, error) {
	if pageSize <= 0 || pageSize > arcgisMaxPageSize {
		pageSize = arcgisMaxPageSize
	}
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(center.Lng, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(center.Lat, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radius))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var resp arcgisPlacesResponse
	if err := c.get(ctx, c.placesURL+"/places/near-point", q, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: near-point: %d %s", ErrArcGIS, resp.Error.Code, resp.Error.Message)
	}

	places := make([]types.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		p := types.Place{
			ID:       r.PlaceID,
			Name:     r.Name,
			Location: types.Point{Lat: r.Location.Y, Lng: r.Location.X},
			Source:   c.Name(),
		}
		for _, cat := range r.Categories {
			p.Types = append(p.Types, cat.Label)
		}
		if len(p.Types) > 0 {
			p.Category = p.Types[0]
		}
		places = append(places, p)
	}
	return places, nil
}

// FeatureQuery is a spatial query against the feature layer.
type FeatureQuery struct {
	Geometry       json.RawMessage
	SpatialRef     int
	Where          string
	DistanceMeters int
	Offset         int
	Limit          int
}

// Query runs q and returns the layer's feature set JSON untouched.
func (c *ArcGISClient) Query(ctx context.Context, fq FeatureQuery) (json.RawMessage, error) {
	if c.featureURL == "" {
		return nil, fmt.Errorf("%w: no feature layer configured", ErrArcGIS)
	}
	q := url.Values{}
	q.Set("geometry", string(fq.Geometry))
	q.Set("geometryType", "esriGeometryPoint")
	q.Set("inSR", strconv.Itoa(fq.SpatialRef))
	q.Set("outSR", strconv.Itoa(fq.SpatialRef))
	q.Set("spatialRel", "esriSpatialRelIntersects")
	q.Set("distance", strconv.Itoa(fq.DistanceMeters))
	q.Set("units", "esriSRUnit_Meter")
	q.Set("where", fq.Where)
	q.Set("outFields", "*")
	q.Set("resultOffset", strconv.Itoa(fq.Offset))
	q.Set("resultRecordCount", strconv.Itoa(fq.Limit))

	var raw json.RawMessage
	if err := c.get(ctx, c.featureURL+"/query", q, &raw); err != nil {
		return nil, err
	}
	var probe struct {
		Error *arcgisError `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Error != nil {
		return nil, fmt.Errorf("%w: query: %d %s", ErrArcGIS, probe.Error.Code, probe.Error.Message)
	}
	return raw, nil
}

func (c *ArcGISClient) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	q.Set("f", "json")
	if c.apiKey != "" {
		q.Set("token", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("arcgis: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("arcgis: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("arcgis: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrArcGIS, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("arcgis: decode response: %w", err)
	}
	return nil
}
