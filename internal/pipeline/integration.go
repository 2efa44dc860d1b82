package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"event_explorer/internal/domain"
)

// LabelBudget is the maximum display-label length in characters.
const LabelBudget = 50

// Integration turns normalized data into the map-ingestion payload: each
// item gets a display label and, where the geocoder can resolve its
// associated location, a coordinate. Items without a resolvable location
// are kept with the coordinate absent.
type Integration struct {
	geocoder Geocoder
	logger   *slog.Logger
	now      func() time.Time
}

func NewIntegration(geocoder Geocoder, logger *slog.Logger) *Integration {
	return &Integration{
		geocoder: geocoder,
		logger:   logger.With("stage", domain.StageIntegration),
		now:      time.Now,
	}
}

// Run builds the final payload. An unrecognized category fails fast with
// ErrUnknownCategory: normalized data only ever reaches this stage through
// the fixed category set, so an unknown value means an upstream contract
// violation (or tampered stored data on resume), never something to drop
// silently.
func (i *Integration) Run(ctx context.Context, data *domain.NormalizedData) (*domain.Payload, error) {
	for cat := range data.Items {
		if !cat.Valid() {
			return nil, &domain.StageError{
				Stage: domain.StageIntegration,
				Err:   fmt.Errorf("%w: %q", domain.ErrUnknownCategory, cat),
			}
		}
	}

	coords := make(map[string]*domain.GeoCoordinate)
	items := make([]domain.MapReadyItem, 0)

	for _, cat := range domain.Categories() {
		for _, item := range data.Items[cat] {
			if !item.Category.Valid() {
				return nil, &domain.StageError{
					Stage: domain.StageIntegration,
					Err:   fmt.Errorf("%w: %q", domain.ErrUnknownCategory, item.Category),
				}
			}

			location := associatedLocation(item, data.Locations)
			coord, err := i.resolveCached(ctx, location, coords)
			if err != nil {
				// Geocoding outages degrade to absent coordinates.
				i.logger.Warn("geocoding failed",
					"location", location,
					"error", err,
				)
			}

			items = append(items, domain.MapReadyItem{
				Label:      makeLabel(item),
				Category:   item.Category,
				Coordinate: coord,
				Summary:    item.Summary,
				SourceURL:  item.SourceURL,
				Timestamp:  item.Timestamp,
				Engagement: item.Engagement,
			})
		}
	}

	geocoded := 0
	for _, item := range items {
		if item.Coordinate != nil {
			geocoded++
		}
	}

	i.logger.Info("integration complete",
		"event", data.EventName,
		"items", len(items),
		"geocoded", geocoded,
	)

	return &domain.Payload{
		EventName:  data.EventName,
		Locations:  data.Locations,
		Items:      items,
		CreatedAt:  i.now().UTC(),
		TotalItems: len(items),
		Complete:   true,
	}, nil
}

func (i *Integration) resolveCached(ctx context.Context, location string, cache map[string]*domain.GeoCoordinate) (*domain.GeoCoordinate, error) {
	if location == "" {
		return nil, nil
	}
	if coord, ok := cache[location]; ok {
		return coord, nil
	}
	coord, err := i.geocoder.Resolve(ctx, location)
	if err != nil {
		return nil, err
	}
	cache[location] = coord
	return coord, nil
}

// associatedLocation picks the impacted location an item most likely refers
// to: the first one mentioned in its text, else the event's primary location.
func associatedLocation(item domain.ContentItem, locations []string) string {
	if len(locations) == 0 {
		return ""
	}
	text := strings.ToLower(item.Title + " " + item.Summary)
	for _, loc := range locations {
		if strings.Contains(text, strings.ToLower(loc)) {
			return loc
		}
	}
	return locations[0]
}

// makeLabel truncates the item's title (or summary when untitled) to the
// label budget, counted in runes so multi-byte text is never cut mid-rune.
// The cut prefers a word boundary when the text has one.
func makeLabel(item domain.ContentItem) string {
	text := item.Title
	if text == "" {
		text = item.Summary
	}
	if utf8.RuneCountInString(text) <= LabelBudget {
		return text
	}

	truncated := string([]rune(text)[:LabelBudget])
	if idx := strings.LastIndex(truncated, " "); idx > 0 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated)
}
