package domain

import "time"

// NormalizedData is the normalization stage output: all timestamps in one
// absolute format, engagement metrics as plain integers, summaries within
// the word budget, items grouped by category in first-seen order.
type NormalizedData struct {
	EventName   string                     `json:"event_name"`
	Locations   []string                   `json:"locations"`
	Items       map[Category][]ContentItem `json:"items"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// GeoCoordinate is an optional resolved location for a map item.
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  string  `json:"accuracy,omitempty"`
}

// MapReadyItem is one content item prepared for map ingestion. Coordinate
// is nil when geocoding found no match; that is a valid state.
type MapReadyItem struct {
	Label      string         `json:"label"`
	Category   Category       `json:"category"`
	Coordinate *GeoCoordinate `json:"coordinate,omitempty"`
	Summary    string         `json:"summary"`
	SourceURL  string         `json:"source_url"`
	Timestamp  time.Time      `json:"timestamp"`
	Engagement int            `json:"engagement"`
}

// Payload is the final artifact handed to the mapping ingestion service.
type Payload struct {
	EventName  string         `json:"event_name"`
	Locations  []string       `json:"locations"`
	Items      []MapReadyItem `json:"items"`
	CreatedAt  time.Time      `json:"created_at"`
	TotalItems int            `json:"total_items"`
	Complete   bool           `json:"complete"`
}
