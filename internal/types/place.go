package types

import "strings"

// Place is a nearby point of interest as reported by one place provider.
type Place struct {
	// ID is the provider's own identifier and may be empty.
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Address  string   `json:"formattedAddress,omitempty"`
	Location Point    `json:"location"`
	Category string   `json:"category,omitempty"`
	Types    []string `json:"types,omitempty"`
	Rating   float32  `json:"rating,omitempty"`
	// Source names the provider that returned the place ("google", "arcgis").
	Source string `json:"source,omitempty"`
}

// Key is the identity used to drop duplicates across providers: the provider id when present,
// otherwise the lower-cased name plus the fixed-precision location.
func (p Place) Key() string {
	if p.ID != "" {
		return "id:" + p.ID
	}
	return "nl:" + strings.ToLower(strings.TrimSpace(p.Name)) + "@" + p.Location.Key()
}

// PlaceResult is the serialized shape of a place set handed to the model.
type PlaceResult struct {
	Places []Place `json:"places"`
}
