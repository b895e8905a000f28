// README: Map endpoints backed by Google Maps Platform.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"travelfinder/internal/maps"
	"travelfinder/internal/modules/places"
	"travelfinder/internal/types"
)

const (
	defaultLanguage = "en-us"
	defaultRadius   = 1000
	defaultPageSize = 20
)

// MapService is satisfied by *maps.GoogleClient.
type MapService interface {
	NearbyPlaces(ctx context.Context, center types.Point, radius int, language string, pageSize int) ([]types.Place, error)
	Geocode(ctx context.Context, address string) ([]maps.GeocodeResult, error)
}

type MapHandler struct {
	maps MapService
}

func NewMapHandler(m MapService) *MapHandler {
	return &MapHandler{maps: m}
}

type geocodeResponse struct {
	Results []maps.GeocodeResult `json:"results"`
}

// NearPoint lists places around latitude/longitude, nearest first.
func (h *MapHandler) NearPoint(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("longitude"), 64)
	center := types.Point{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !center.Valid() {
		writeError(c, http.StatusBadRequest, "invalid latitude/longitude")
		return
	}
	radius, ok := positiveQueryInt(c, "radius", defaultRadius)
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid radius")
		return
	}
	pageSize, ok := positiveQueryInt(c, "pageSize", defaultPageSize)
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid pageSize")
		return
	}
	language := c.DefaultQuery("languageCode", defaultLanguage)

	found, err := h.maps.NearbyPlaces(c.Request.Context(), center, radius, language, pageSize)
	if err != nil {
		writeServiceError(c, &places.ProviderError{Provider: "google", Err: err})
		return
	}
	result := places.Result{Places: places.Merge(found)}
	places.SortByDistance(center, result.Places)
	writeJSON(c, http.StatusOK, result.PlaceResult())
}

func (h *MapHandler) Geocode(c *gin.Context) {
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		writeError(c, http.StatusBadRequest, "address is required")
		return
	}
	results, err := h.maps.Geocode(c.Request.Context(), address)
	if err != nil {
		writeServiceError(c, &places.ProviderError{Provider: "google", Err: err})
		return
	}
	if results == nil {
		results = []maps.GeocodeResult{}
	}
	writeJSON(c, http.StatusOK, geocodeResponse{Results: results})
}

func positiveQueryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
