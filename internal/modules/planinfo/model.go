// README: PlanInfo is the structured travel-preference extraction of a conversation.
package planinfo

import (
	"slices"

	"travelfinder/internal/ai"
	"travelfinder/internal/types"
)

type PlanInfo struct {
	Categories       []string `json:"locationCategoryList"`
	BudgetLevel      []string `json:"budget_level"`
	Language         string   `json:"languageCode"`
	Refinement       string   `json:"refinement,omitempty"`
	PointOfInterests []string `json:"pointOfInterest"`
}

// Clone returns a deep copy so cached entries never share slices with callers.
func (p PlanInfo) Clone() PlanInfo {
	p.Categories = slices.Clone(p.Categories)
	p.BudgetLevel = slices.Clone(p.BudgetLevel)
	p.PointOfInterests = slices.Clone(p.PointOfInterests)
	return p
}

// Default is returned whenever extraction fails.
func Default() PlanInfo {
	return PlanInfo{
		BudgetLevel: []string{"Moderate"},
		Language:    "en-us",
		Categories: []string{
			"park", "restaurant", "art_gallery", "museum", "historical_landmark",
			"cafe", "bar", "library", "night_club", "store", "jewelry_store",
		},
	}
}

// Source tells where a returned PlanInfo came from.
type Source string

const (
	SourceCache      Source = "cache"
	SourceExtracted  Source = "extracted"
	SourceRefinement Source = "refinement"
	SourceDefault    Source = "default"
)

type Request struct {
	RequestID    string
	At           types.Point
	Conversation []ai.Message
	// TemplateID defaults to DefaultTemplateID.
	TemplateID string
}
