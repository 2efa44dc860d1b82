package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplates = `### event_analysis
Analyze the event "[Event Title]" near [Location].
Return a summary and search queries.

---

### trending_events
Pick the [Event Count] most significant events from:
[News Digest]
`

func TestParse(t *testing.T) {
	store, err := Parse(testTemplates)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"event_analysis", "trending_events"}, store.Names())
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("no headers here")
	assert.Error(t, err)
}

func TestParse_Duplicate(t *testing.T) {
	_, err := Parse("### a\nbody\n\n---\n\n### a\nother")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	store, err := Parse(testTemplates)
	require.NoError(t, err)

	text, err := store.Resolve("event_analysis", map[string]string{
		"Event Title": "LA Protest 2025",
		"Location":    "Los Angeles",
	})
	require.NoError(t, err)
	assert.Contains(t, text, `"LA Protest 2025"`)
	assert.Contains(t, text, "near Los Angeles")
	assert.NotContains(t, text, "[")
}

func TestResolve_TemplateNotFound(t *testing.T) {
	store, err := Parse(testTemplates)
	require.NoError(t, err)

	_, err = store.Resolve("missing", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestResolve_UnresolvedPlaceholder(t *testing.T) {
	store, err := Parse(testTemplates)
	require.NoError(t, err)

	_, err = store.Resolve("event_analysis", map[string]string{
		"Event Title": "LA Protest 2025",
	})
	assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)
}
