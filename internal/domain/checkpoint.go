package domain

import (
	"fmt"
	"strings"
)

// CheckpointPreview is the human-readable snapshot presented at a
// confirmation gate. It holds one category under per-category policy and
// all previewed categories under per-event policy.
type CheckpointPreview struct {
	EventName  string           `json:"event_name"`
	Categories []CategoryResult `json:"categories"`
}

// Render formats the preview for display.
func (p CheckpointPreview) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", p.EventName)
	for _, cat := range p.Categories {
		fmt.Fprintf(&b, "[%s] %d preview item(s)\n", cat.Category, len(cat.Previews))
		for _, item := range cat.Previews {
			fmt.Fprintf(&b, "  - %s (%s)\n", item.Title, item.SourceURL)
		}
	}
	return b.String()
}
