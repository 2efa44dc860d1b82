package domain

import "strings"

// TrendingEvent is one candidate event produced by the discovery stage.
// Immutable once created; the user selects one to seed analysis.
type TrendingEvent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	CategoryTag string `json:"category_tag"`
}

// SearchQuery is one platform-specific query produced by analysis.
type SearchQuery struct {
	Category  Category `json:"category"`
	Query     string   `json:"query"`
	Rationale string   `json:"rationale"`
}

// EventAnalysis is the analysis stage output for one selected event.
// It carries exactly one query per content category.
type EventAnalysis struct {
	EventName string        `json:"event_name"`
	Summary   string        `json:"summary"`
	Locations []string      `json:"locations"`
	Queries   []SearchQuery `json:"queries"`
}

// QueryFor returns the query for the given category, if present.
func (a *EventAnalysis) QueryFor(c Category) (SearchQuery, bool) {
	for _, q := range a.Queries {
		if q.Category == c {
			return q, true
		}
	}
	return SearchQuery{}, false
}

// Slugify converts an event name into a filename/key-safe slug.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
