package pipeline

import (
	"log/slog"
	"strings"
	"time"

	"event_explorer/internal/domain"
)

// SummaryWordBudget is the maximum word count for a normalized summary.
const SummaryWordBudget = 25

// Normalizer coerces retrieved content into one uniform shape: UTC
// second-precision timestamps, non-negative integer engagement, summaries
// within the word budget, items grouped by category in first-seen order.
// Malformed fields degrade to defaults instead of failing, and applying it
// to already-normalized data changes nothing.
type Normalizer struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{
		logger: logger.With("stage", domain.StageNormalization),
		now:    time.Now,
	}
}

// Run normalizes the retrieval output, previews plus any confirmed details.
func (n *Normalizer) Run(result *domain.RetrievalResult) *domain.NormalizedData {
	generated := n.now().UTC().Truncate(time.Second)

	items := make(map[domain.Category][]domain.ContentItem, len(result.Categories))
	total := 0
	for i := range result.Categories {
		cat := &result.Categories[i]
		normalized := make([]domain.ContentItem, 0, len(cat.Previews))
		for _, item := range cat.Items() {
			normalized = append(normalized, normalizeItem(item, generated))
		}
		items[cat.Category] = normalized
		total += len(normalized)
	}

	n.logger.Info("normalized content",
		"event", result.EventName,
		"items", total,
	)

	return &domain.NormalizedData{
		EventName:   result.EventName,
		Locations:   normalizeLocations(result.Locations),
		Items:       items,
		GeneratedAt: generated,
	}
}

// Apply re-normalizes already-normalized data. It exists so resumed runs can
// pass stored data through again safely: Apply(Apply(d)) == Apply(d).
func (n *Normalizer) Apply(data *domain.NormalizedData) *domain.NormalizedData {
	generated := data.GeneratedAt.UTC().Truncate(time.Second)

	items := make(map[domain.Category][]domain.ContentItem, len(data.Items))
	for cat, list := range data.Items {
		normalized := make([]domain.ContentItem, 0, len(list))
		for _, item := range list {
			normalized = append(normalized, normalizeItem(item, generated))
		}
		items[cat] = normalized
	}

	return &domain.NormalizedData{
		EventName:   data.EventName,
		Locations:   normalizeLocations(data.Locations),
		Items:       items,
		GeneratedAt: generated,
	}
}

// normalizeItem coerces one item. Sources that cannot parse a publication
// date hand over a zero timestamp; it defaults to the batch generation time
// so year-0001 values never reach the payload.
func normalizeItem(item domain.ContentItem, generated time.Time) domain.ContentItem {
	item.Title = strings.TrimSpace(item.Title)
	item.Summary = TruncateWords(strings.TrimSpace(item.Summary), SummaryWordBudget)
	if item.Timestamp.IsZero() {
		item.Timestamp = generated
	} else {
		item.Timestamp = item.Timestamp.UTC().Truncate(time.Second)
	}
	if item.Engagement < 0 {
		item.Engagement = 0
	}
	return item
}

func normalizeLocations(locations []string) []string {
	out := make([]string, 0, len(locations))
	for _, loc := range locations {
		loc = strings.TrimSpace(loc)
		if loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// TruncateWords cuts text to at most limit words, always on a word boundary.
func TruncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:limit], " ")
}
