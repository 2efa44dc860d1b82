package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category identifies one of the four fixed content sources. The set is
// closed: unmarshalling any other value fails with ErrUnknownCategory.
type Category string

const (
	CategorySocial     Category = "social"
	CategoryVideo      Category = "video"
	CategoryOfficial   Category = "official"
	CategoryLiveStream Category = "livestream"
)

// Categories lists all categories in their canonical order.
func Categories() []Category {
	return []Category{CategorySocial, CategoryVideo, CategoryOfficial, CategoryLiveStream}
}

// Valid reports whether c is one of the four recognized categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySocial, CategoryVideo, CategoryOfficial, CategoryLiveStream:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed := Category(s)
	if !parsed.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	*c = parsed
	return nil
}

// ContentItem is one retrieved piece of content for a category. Previews
// and details share the shape; Detail marks the fidelity level.
type ContentItem struct {
	Category   Category  `json:"category"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Author     string    `json:"author,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Engagement int       `json:"engagement"`
	SourceURL  string    `json:"source_url"`
	Detail     bool      `json:"detail"`
}

// CategoryState tracks the retrieval progress of a single category.
type CategoryState string

const (
	StatePending   CategoryState = "pending"
	StatePreviewed CategoryState = "previewed"
	StateConfirmed CategoryState = "confirmed"
	StateDetailed  CategoryState = "detailed"
	StateDeclined  CategoryState = "declined"
	StateSkipped   CategoryState = "skipped"
)

// CategoryResult holds the retrieval outcome for one category. Details are
// only ever populated after the category's previews were confirmed.
type CategoryResult struct {
	Category Category      `json:"category"`
	State    CategoryState `json:"state"`
	Previews []ContentItem `json:"previews"`
	Details  []ContentItem `json:"details,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Items returns the category's content at its best available fidelity: the
// detail variant where one was fetched for a previewed URL, the preview
// otherwise. Order follows the previews as they were shown.
func (r *CategoryResult) Items() []ContentItem {
	detailByURL := make(map[string]ContentItem, len(r.Details))
	for _, d := range r.Details {
		detailByURL[d.SourceURL] = d
	}

	items := make([]ContentItem, 0, len(r.Previews))
	for _, p := range r.Previews {
		if d, ok := detailByURL[p.SourceURL]; ok {
			items = append(items, d)
			continue
		}
		items = append(items, p)
	}
	return items
}

// RetrievalResult is the retrieval stage output across all categories.
type RetrievalResult struct {
	EventName  string           `json:"event_name"`
	Locations  []string         `json:"locations"`
	Categories []CategoryResult `json:"categories"`
}

// CategoryResult returns the result for the given category, if present.
func (r *RetrievalResult) CategoryResult(c Category) (*CategoryResult, bool) {
	for i := range r.Categories {
		if r.Categories[i].Category == c {
			return &r.Categories[i], true
		}
	}
	return nil, false
}
