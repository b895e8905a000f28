package maps

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"googlemaps.github.io/maps"

	"travelfinder/internal/types"
)

func TestGoogleNearbyPlaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/place/nearbysearch/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("radius"); got != "1000" {
			t.Errorf("radius = %q", got)
		}
		_, _ = io.WriteString(w, `{"status":"OK","results":[
			{"place_id":"g1","name":"Cafe Uno","vicinity":"1 Main St","types":["cafe","food"],"geometry":{"location":{"lat":25.03,"lng":121.56}}},
			{"place_id":"g2","name":"Museum","vicinity":"2 Main St","types":["museum"],"geometry":{"location":{"lat":25.04,"lng":121.57}}},
			{"place_id":"g3","name":"Park","types":["park"],"geometry":{"location":{"lat":25.05,"lng":121.58}}}
		]}`)
	}))
	defer ts.Close()

	g, err := NewGoogleClient("key", ts.Client(), maps.WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("NewGoogleClient: %v", err)
	}
	places, err := g.NearbyPlaces(context.Background(), types.Point{Lat: 25.03, Lng: 121.56}, 1000, "en-us", 2)
	if err != nil {
		t.Fatalf("NearbyPlaces: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("pageSize not applied, got %d places", len(places))
	}
	first := places[0]
	if first.ID != "g1" || first.Category != "cafe" || first.Address != "1 Main St" || first.Source != "google" {
		t.Errorf("unexpected place: %+v", first)
	}
	if first.Location.Lat != 25.03 || first.Location.Lng != 121.56 {
		t.Errorf("location = %+v", first.Location)
	}
}

func TestGoogleReverseGeocode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/geocode/json" || r.URL.Query().Get("latlng") == "" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = io.WriteString(w, `{"status":"OK","results":[{"formatted_address":"Xinyi District, Taipei","place_id":"p1","geometry":{"location":{"lat":25.03,"lng":121.56}}}]}`)
	}))
	defer ts.Close()

	g, _ := NewGoogleClient("key", ts.Client(), maps.WithBaseURL(ts.URL))
	res, err := g.ReverseGeocode(context.Background(), types.Point{Lat: 25.03, Lng: 121.56})
	if err != nil {
		t.Fatalf("ReverseGeocode: %v", err)
	}
	if len(res) != 1 || res[0].FormattedAddress != "Xinyi District, Taipei" {
		t.Fatalf("unexpected results: %+v", res)
	}
}

func TestArcGISNearbyPlaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/places/near-point" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q.Get("x") != "121.56" || q.Get("y") != "25.03" || q.Get("token") != "arc" || q.Get("f") != "json" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("pageSize") != "20" {
			t.Errorf("pageSize must be capped at 20, got %s", q.Get("pageSize"))
		}
		_, _ = io.WriteString(w, `{"results":[{"placeId":"a1","name":"Tea House","location":{"x":121.561,"y":25.031},"categories":[{"categoryId":"13035","label":"Tea Room"}]}]}`)
	}))
	defer ts.Close()

	c := NewArcGISClient("arc", ts.URL+"/", "", ts.Client())
	places, err := c.NearbyPlaces(context.Background(), types.Point{Lat: 25.03, Lng: 121.56}, 1000, "en-us", 50)
	if err != nil {
		t.Fatalf("NearbyPlaces: %v", err)
	}
	if len(places) != 1 {
		t.Fatalf("got %d places", len(places))
	}
	p := places[0]
	if p.ID != "a1" || p.Category != "Tea Room" || p.Location.Lat != 25.031 || p.Location.Lng != 121.561 || p.Source != "arcgis" {
		t.Errorf("unexpected place: %+v", p)
	}
}

func TestArcGISErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":{"code":498,"message":"Invalid token."}}`)
	}))
	defer ts.Close()

	c := NewArcGISClient("bad", ts.URL, ts.URL, ts.Client())
	if _, err := c.NearbyPlaces(context.Background(), types.Point{}, 1000, "", 20); !errors.Is(err, ErrArcGIS) {
		t.Errorf("near-point: expected ErrArcGIS, got %v", err)
	}
	if _, err := c.Query(context.Background(), FeatureQuery{Geometry: json.RawMessage(`{}`)}); !errors.Is(err, ErrArcGIS) {
		t.Errorf("query: expected ErrArcGIS, got %v", err)
	}
}

func TestArcGISQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/FeatureServer/0/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		checks := map[string]string{
			"inSR":              "4326",
			"distance":          "5000",
			"where":             "Category LIKE '%cafe%'",
			"resultOffset":      "0",
			"resultRecordCount": "50",
			"geometryType":      "esriGeometryPoint",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("%s = %q, want %q", k, got, want)
			}
		}
		if !strings.Contains(q.Get("geometry"), `"wkid":4326`) {
			t.Errorf("geometry = %s", q.Get("geometry"))
		}
		_, _ = io.WriteString(w, `{"features":[{"attributes":{"Name":"Cafe Uno","Category":"cafe"}}]}`)
	}))
	defer ts.Close()

	c := NewArcGISClient("", "", ts.URL+"/FeatureServer/0", ts.Client())
	raw, err := c.Query(context.Background(), FeatureQuery{
		Geometry:       json.RawMessage(`{"x":121.56,"y":25.03,"spatialReference":{"wkid":4326}}`),
		SpatialRef:     4326,
		Where:          "Category LIKE '%cafe%'",
		DistanceMeters: 5000,
		Limit:          50,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !strings.Contains(string(raw), "Cafe Uno") {
		t.Errorf("unexpected result: %s", raw)
	}
}

func TestArcGISQueryWithoutLayer(t *testing.T) {
	c := NewArcGISClient("", "", "", nil)
	if _, err := c.Query(context.Background(), FeatureQuery{}); !errors.Is(err, ErrArcGIS) {
		t.Errorf("expected ErrArcGIS, got %v", err)
	}
}
