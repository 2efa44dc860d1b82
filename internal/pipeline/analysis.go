package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"event_explorer/internal/domain"
	"event_explorer/internal/prompt"
)

// AnalysisTemplate is the prompt template name the analysis stage resolves.
const AnalysisTemplate = "event_analysis"

// Analysis turns one selected event into a summary, impacted locations, and
// one search query per content category. Model responses drift from the
// expected structure often enough that the parsed result is validated field
// by field before it is accepted.
type Analysis struct {
	reasoner Reasoner
	prompts  *prompt.Store
	logger   *slog.Logger
}

func NewAnalysis(reasoner Reasoner, prompts *prompt.Store, logger *slog.Logger) *Analysis {
	return &Analysis{
		reasoner: reasoner,
		prompts:  prompts,
		logger:   logger.With("stage", domain.StageAnalysis),
	}
}

// analysisResponse is the structure the reasoner is asked to return.
type analysisResponse struct {
	Summary   string   `json:"summary"`
	Locations []string `json:"locations"`
	Queries   []struct {
		Category  string `json:"category"`
		Query     string `json:"query"`
		Rationale string `json:"rationale"`
	} `json:"queries"`
}

// Run analyzes the selected event.
func (a *Analysis) Run(ctx context.Context, event domain.TrendingEvent) (*domain.EventAnalysis, error) {
	promptText, err := a.prompts.Resolve(AnalysisTemplate, map[string]string{
		"Event Title":       event.Title,
		"Event Description": event.Description,
		"Event Location":    event.Location,
	})
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageAnalysis, Err: err}
	}

	response, err := a.reasoner.Complete(ctx, promptText)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageAnalysis, Err: fmt.Errorf("complete: %w", err)}
	}

	analysis, err := parseAnalysis(event.Title, response)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageAnalysis, Err: err}
	}

	a.logger.Info("analyzed event",
		"event", event.Title,
		"locations", len(analysis.Locations),
		"queries", len(analysis.Queries),
	)

	return analysis, nil
}

// parseAnalysis validates the reasoner response: a non-empty summary, at
// least one location, and exactly one query per category in the fixed set.
func parseAnalysis(eventName, response string) (*domain.EventAnalysis, error) {
	var parsed analysisResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAnalysis, err)
	}

	if strings.TrimSpace(parsed.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", domain.ErrMalformedAnalysis)
	}
	if len(parsed.Locations) == 0 {
		return nil, fmt.Errorf("%w: missing locations", domain.ErrMalformedAnalysis)
	}

	byCategory := make(map[domain.Category]domain.SearchQuery, len(parsed.Queries))
	for _, q := range parsed.Queries {
		cat := domain.Category(strings.ToLower(strings.TrimSpace(q.Category)))
		if !cat.Valid() {
			return nil, fmt.Errorf("%w: query category %q", domain.ErrMalformedAnalysis, q.Category)
		}
		if strings.TrimSpace(q.Query) == "" {
			return nil, fmt.Errorf("%w: empty query for category %s", domain.ErrMalformedAnalysis, cat)
		}
		if _, dup := byCategory[cat]; dup {
			return nil, fmt.Errorf("%w: duplicate query for category %s", domain.ErrMalformedAnalysis, cat)
		}
		byCategory[cat] = domain.SearchQuery{Category: cat, Query: q.Query, Rationale: q.Rationale}
	}

	queries := make([]domain.SearchQuery, 0, len(domain.Categories()))
	for _, cat := range domain.Categories() {
		q, ok := byCategory[cat]
		if !ok {
			return nil, fmt.Errorf("%w: missing query for category %s", domain.ErrMalformedAnalysis, cat)
		}
		queries = append(queries, q)
	}

	return &domain.EventAnalysis{
		EventName: eventName,
		Summary:   parsed.Summary,
		Locations: parsed.Locations,
		Queries:   queries,
	}, nil
}

// extractJSON strips markdown code fences and surrounding prose so a JSON
// object embedded in a chatty response still parses.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return response
	}
	return response[start : end+1]
}
