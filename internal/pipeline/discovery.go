package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"event_explorer/internal/domain"
	"event_explorer/internal/prompt"
)

// DiscoveryTemplate is the prompt template name the discovery stage resolves.
const DiscoveryTemplate = "trending_events"

// digestSize is how many raw news articles feed the reasoner digest.
const digestSize = 10

// Discovery produces the ordered list of trending-event candidates the user
// picks from. Raw news articles are fetched from the source, compiled into a
// digest, and handed to the reasoner, which selects and structures the most
// significant events. Retry policy lives in the source; discovery shapes the
// result: duplicates collapse by normalized title and the list truncates to
// the requested count. A short or empty list is valid.
type Discovery struct {
	source   TrendingSource
	reasoner Reasoner
	prompts  *prompt.Store
	count    int
	logger   *slog.Logger
}

func NewDiscovery(source TrendingSource, reasoner Reasoner, prompts *prompt.Store, count int, logger *slog.Logger) *Discovery {
	return &Discovery{
		source:   source,
		reasoner: reasoner,
		prompts:  prompts,
		count:    count,
		logger:   logger.With("stage", domain.StageDiscovery),
	}
}

// trendingResponse is the structure the reasoner is asked to return.
type trendingResponse struct {
	Events []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Location    string `json:"location"`
		CategoryTag string `json:"category_tag"`
	} `json:"events"`
}

// Run fetches a news digest, has the reasoner curate it into structured
// events, then dedupes and truncates the result.
func (d *Discovery) Run(ctx context.Context) ([]domain.TrendingEvent, error) {
	raw, err := d.source.FetchEvents(ctx, digestSize)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageDiscovery, Err: fmt.Errorf("fetch news: %w", err)}
	}
	if len(raw) == 0 {
		d.logger.Info("no news articles found", "source", d.source.Name())
		return nil, nil
	}

	promptText, err := d.prompts.Resolve(DiscoveryTemplate, map[string]string{
		"News Digest": buildDigest(raw),
		"Event Count": strconv.Itoa(d.count),
	})
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageDiscovery, Err: err}
	}

	response, err := d.reasoner.Complete(ctx, promptText)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageDiscovery, Err: fmt.Errorf("complete: %w", err)}
	}

	curated, err := parseTrending(response)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageDiscovery, Err: err}
	}

	seen := make(map[string]struct{}, len(curated))
	events := make([]domain.TrendingEvent, 0, d.count)
	for _, ev := range curated {
		key := normalizeTitle(ev.Title)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		events = append(events, ev)
		if len(events) == d.count {
			break
		}
	}

	d.logger.Info("discovered events",
		"source", d.source.Name(),
		"articles", len(raw),
		"curated", len(curated),
		"returned", len(events),
	)

	return events, nil
}

// buildDigest formats raw articles as a bulleted list the reasoner can scan.
func buildDigest(raw []domain.TrendingEvent) string {
	var b strings.Builder
	for _, ev := range raw {
		b.WriteString("- " + ev.Title)
		if ev.Location != "" {
			b.WriteString(" (" + ev.Location + ")")
		}
		b.WriteString("\n")
		if ev.Description != "" {
			b.WriteString("  " + ev.Description + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// parseTrending validates the reasoner response: an events list must be
// present, and entries without a title are dropped rather than failing the
// whole batch.
func parseTrending(response string) ([]domain.TrendingEvent, error) {
	var parsed trendingResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDiscovery, err)
	}
	if parsed.Events == nil {
		return nil, fmt.Errorf("%w: missing events list", domain.ErrMalformedDiscovery)
	}

	events := make([]domain.TrendingEvent, 0, len(parsed.Events))
	for _, ev := range parsed.Events {
		if strings.TrimSpace(ev.Title) == "" {
			continue
		}
		events = append(events, domain.TrendingEvent{
			Title:       ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			CategoryTag: ev.CategoryTag,
		})
	}
	return events, nil
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
