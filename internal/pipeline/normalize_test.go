package pipeline

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event_explorer/internal/domain"
)

func testNormalizer() *Normalizer {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewNormalizer(logger)
}

func TestNormalizer_Run(t *testing.T) {
	n := testNormalizer()

	loc := time.FixedZone("UTC+5", 5*3600)
	result := &domain.RetrievalResult{
		EventName: "LA Protest 2025",
		Locations: []string{" Los Angeles ", "", "Downtown LA"},
		Categories: []domain.CategoryResult{
			{
				Category: domain.CategorySocial,
				State:    domain.StatePreviewed,
				Previews: []domain.ContentItem{
					{
						Category:   domain.CategorySocial,
						Title:      "  first post  ",
						Summary:    "short summary",
						Timestamp:  time.Date(2025, 6, 10, 12, 30, 45, 999999999, loc),
						Engagement: -3,
						SourceURL:  "https://example.com/1",
					},
					{
						Category:  domain.CategorySocial,
						Title:     "second post",
						SourceURL: "https://example.com/2",
					},
				},
			},
		},
	}

	data := n.Run(result)

	require.Len(t, data.Items[domain.CategorySocial], 2)
	first := data.Items[domain.CategorySocial][0]
	assert.Equal(t, "first post", first.Title)
	assert.Equal(t, 0, first.Engagement, "missing or negative metric becomes 0")
	assert.Equal(t, time.UTC, first.Timestamp.Location())
	assert.Zero(t, first.Timestamp.Nanosecond())

	assert.Equal(t, []string{"Los Angeles", "Downtown LA"}, data.Locations)

	// Order preserved within the category.
	assert.Equal(t, "second post", data.Items[domain.CategorySocial][1].Title)
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := testNormalizer()

	result := &domain.RetrievalResult{
		EventName: "Storm Warning",
		Locations: []string{"Miami"},
		Categories: []domain.CategoryResult{
			{
				Category: domain.CategoryVideo,
				State:    domain.StatePreviewed,
				Previews: []domain.ContentItem{
					{
						Category:   domain.CategoryVideo,
						Title:      "Footage",
						Summary:    strings.Repeat("word ", 40),
						Timestamp:  time.Now(),
						Engagement: 12,
						SourceURL:  "https://example.com/v",
					},
				},
			},
		},
	}

	once := n.Run(result)
	twice := n.Apply(once)
	thrice := n.Apply(twice)

	assert.Equal(t, once, twice)
	assert.Equal(t, twice, thrice)
}

func TestNormalizer_DefaultsMissingTimestamps(t *testing.T) {
	n := testNormalizer()

	result := &domain.RetrievalResult{
		EventName: "Undated",
		Categories: []domain.CategoryResult{
			{
				Category: domain.CategorySocial,
				State:    domain.StatePreviewed,
				Previews: []domain.ContentItem{
					{Category: domain.CategorySocial, Title: "no date", SourceURL: "https://example.com/1"},
					{
						Category:  domain.CategorySocial,
						Title:     "dated",
						Timestamp: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
						SourceURL: "https://example.com/2",
					},
				},
			},
		},
	}

	data := n.Run(result)

	require.Len(t, data.Items[domain.CategorySocial], 2)
	undated := data.Items[domain.CategorySocial][0]
	assert.Equal(t, data.GeneratedAt, undated.Timestamp, "unparseable dates fall back to the batch generation time")
	assert.False(t, undated.Timestamp.IsZero())

	dated := data.Items[domain.CategorySocial][1]
	assert.Equal(t, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), dated.Timestamp)

	// Re-applying leaves the defaulted timestamps alone.
	again := n.Apply(data)
	assert.Equal(t, data, again)
}

func TestNormalizer_SummaryWordBudget(t *testing.T) {
	n := testNormalizer()

	words := make([]string, 40)
	for i := range words {
		words[i] = "w" + strings.Repeat("o", i%3+1) + "rd"
	}
	summary := strings.Join(words, " ")

	result := &domain.RetrievalResult{
		EventName: "Event",
		Categories: []domain.CategoryResult{
			{
				Category: domain.CategoryOfficial,
				State:    domain.StatePreviewed,
				Previews: []domain.ContentItem{
					{Category: domain.CategoryOfficial, Summary: summary, SourceURL: "https://example.com/o"},
				},
			},
		},
	}

	data := n.Run(result)

	got := data.Items[domain.CategoryOfficial][0].Summary
	gotWords := strings.Fields(got)
	require.Len(t, gotWords, 25)
	assert.Equal(t, words[:25], gotWords, "truncation never splits a word")
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under budget", "one two three", 25, "one two three"},
		{"exactly budget", "a b c", 3, "a b c"},
		{"over budget", "a b c d", 3, "a b c"},
		{"collapses whitespace", "a   b\tc", 5, "a b c"},
		{"empty", "", 25, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateWords(tt.in, tt.limit))
		})
	}
}

func TestNormalizer_UsesDetailsForConfirmedCategories(t *testing.T) {
	n := testNormalizer()

	result := &domain.RetrievalResult{
		EventName: "Event",
		Categories: []domain.CategoryResult{
			{
				Category: domain.CategorySocial,
				State:    domain.StateDetailed,
				Previews: []domain.ContentItem{
					{Category: domain.CategorySocial, Title: "preview", SourceURL: "https://example.com/1"},
				},
				Details: []domain.ContentItem{
					{Category: domain.CategorySocial, Title: "detail", SourceURL: "https://example.com/1", Detail: true},
				},
			},
			{
				Category: domain.CategoryVideo,
				State:    domain.StateDeclined,
				Previews: []domain.ContentItem{
					{Category: domain.CategoryVideo, Title: "video preview", SourceURL: "https://example.com/2"},
				},
			},
		},
	}

	data := n.Run(result)

	require.Len(t, data.Items[domain.CategorySocial], 1)
	assert.True(t, data.Items[domain.CategorySocial][0].Detail)
	assert.Equal(t, "detail", data.Items[domain.CategorySocial][0].Title)

	require.Len(t, data.Items[domain.CategoryVideo], 1)
	assert.False(t, data.Items[domain.CategoryVideo][0].Detail)
}
