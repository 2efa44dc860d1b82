// Package serper implements the trending-event and content collaborators
// on top of the Serper search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"event_explorer/internal/domain"
)

const (
	SourceID   = "serper"
	SourceName = "Serper Search"

	trendingQuery = "breaking news today"
)

// Config holds Serper client configuration.
type Config struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source implements pipeline.TrendingSource and pipeline.ContentSource.
type Source struct {
	httpClient     *http.Client
	apiKey         string
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new Serper source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:         cfg.APIKey,
		baseURL:        cfg.BaseURL,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchEvents fetches raw trending-event candidates from the news endpoint.
func (s *Source) FetchEvents(ctx context.Context, count int) ([]domain.TrendingEvent, error) {
	var resp newsResponse
	if err := s.post(ctx, "/news", searchRequest{Query: trendingQuery, Num: count}, &resp); err != nil {
		return nil, err
	}

	s.logger.Debug("fetched trending candidates", "count", len(resp.News))

	events := make([]domain.TrendingEvent, 0, len(resp.News))
	for _, a := range resp.News {
		if a.Title == "" {
			continue
		}
		events = append(events, domain.TrendingEvent{
			Title:       a.Title,
			Description: a.Snippet,
			Location:    a.Location,
			CategoryTag: a.Section,
		})
	}
	return events, nil
}

// FetchPreview fetches lightweight preview items for a category query.
func (s *Source) FetchPreview(ctx context.Context, query domain.SearchQuery, limit int) ([]domain.ContentItem, error) {
	return s.fetchContent(ctx, query, limit, false)
}

// FetchDetail fetches full-fidelity items for a confirmed category query.
func (s *Source) FetchDetail(ctx context.Context, query domain.SearchQuery, limit int) ([]domain.ContentItem, error) {
	return s.fetchContent(ctx, query, limit, true)
}

func (s *Source) fetchContent(ctx context.Context, query domain.SearchQuery, limit int, detail bool) ([]domain.ContentItem, error) {
	var resp searchResponse
	if err := s.post(ctx, "/search", searchRequest{Query: query.Query, Num: limit}, &resp); err != nil {
		return nil, err
	}

	items := make([]domain.ContentItem, 0, limit)
	for _, r := range resp.Organic {
		if len(items) == limit {
			break
		}
		items = append(items, domain.ContentItem{
			Category:   query.Category,
			Title:      r.Title,
			Summary:    r.Snippet,
			Timestamp:  parseDate(r.Date),
			Engagement: engagementFromPosition(r.Position),
			SourceURL:  r.Link,
			Detail:     detail,
		})
	}

	s.logger.Debug("fetched content",
		"category", query.Category,
		"detail", detail,
		"items", len(items),
	)

	return items, nil
}

func (s *Source) post(ctx context.Context, path string, reqBody searchRequest, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := s.baseURL + path

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.doRequest(ctx, url, body, out)
		if err == nil {
			return nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w: after %d attempts: %v", domain.ErrSourceUnavailable, s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

// parseDate handles the absolute formats Serper returns. Unparseable or
// relative dates map to the zero time; normalization supplies the default.
func parseDate(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "Jan 2, 2006", "2 Jan 2006", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Search results carry no engagement metric; rank position stands in so
// earlier results sort ahead after normalization.
func engagementFromPosition(position int) int {
	if position <= 0 || position > 100 {
		return 0
	}
	return 100 - position
}
