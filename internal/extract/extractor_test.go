package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractorSessionExample(t *testing.T) {
	t.Parallel()

	e := NewDefault()

	assert.Equal(t, []string{"1. Add metrics", "2. Write tests"}, e.ExtractNextSteps("1. Add metrics\n2. Write tests"))
	assert.Contains(t, e.ExtractDecisions("Implemented caching layer"), "Implemented caching layer")
}

func TestCondenseLeavesShortTextUnchanged(t *testing.T) {
	t.Parallel()

	text := "  stable\n\nshort  "
	assert.Equal(t, text, NewDefault().Condense(text))
}

func TestCondenseKeepsMarkedAndLongLines(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("✅ ok\n")
	b.WriteString("short\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "line %02d is comfortably longer than twenty\n", i)
	}

	got := strings.Split(NewDefault().Condense(b.String()), "\n")

	require.Len(t, got, 10)
	assert.Equal(t, "✅ ok", got[0])
	assert.Equal(t, "line 00 is comfortably longer than twenty", got[1])
	assert.NotContains(t, got, "short")
}

func TestExtractDecisions(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		"Selected go-toml for persistence",
		"session notes tidy",
		"the system is slow",
		"The caching system worked",
		"",
		"Fixed the probe timeout",
		"Built the orchestrator",
		"Created a release",
		"Designed one more thing",
	}, "\n")

	got := NewDefault().ExtractDecisions(text)

	assert.Equal(t, []string{
		"Selected go-toml for persistence",
		"The caching system worked",
		"Fixed the probe timeout",
		"Built the orchestrator",
		"Created a release",
	}, got)
}

func TestExtractDecisionsUsesInjectedDomainTables(t *testing.T) {
	t.Parallel()

	e := New(Tables{
		DomainNouns: []string{"Widget"},
		DomainVerbs: []string{"polished"},
	})

	assert.Equal(t, []string{"widget POLISHED"}, e.ExtractDecisions("widget\nwidget POLISHED\npolished gear"))
}

func TestExtractArchitectureChanges(t *testing.T) {
	t.Parallel()

	text := "New plugin architecture\nRefactored storage layer\nUnrelated line\nDesign review held\nPattern library"

	assert.Equal(t,
		[]string{"New plugin architecture", "Refactored storage layer", "Design review held"},
		NewDefault().ExtractArchitectureChanges(text),
	)
}

func TestExtractNextSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "   ", want: []string{}},
		{name: "bullets", text: "- one\n* two\n• three", want: []string{"- one", "* two", "• three"}},
		{name: "modal phrase", text: "We should sleep\nnothing here", want: []string{"We should sleep"}},
		{name: "fallback to whole input", text: "  someday maybe  ", want: []string{"someday maybe"}},
		{name: "capped", text: "1. a\n2. b\n3. c\n4. d\n5. e\n6. f", want: []string{"1. a", "2. b", "3. c", "4. d", "5. e"}},
		{name: "launch marker", text: "🚀 ship it", want: []string{"🚀 ship it"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NewDefault().ExtractNextSteps(tc.text))
		})
	}
}

func TestExtractCriticalNotesSecurityWins(t *testing.T) {
	t.Parallel()

	notes := NewDefault().ExtractCriticalNotes(strings.Join([]string{
		"🔒 Never touch .node-red",
		"Security: keys stay in .env",
		"Critical security issue",
		"Important: medication fridge plug",
		"💡 restarts clear memory",
		"plain line",
	}, "\n"))

	assert.Equal(t, []string{"🔒 Never touch .node-red", "Security: keys stay in .env", "Critical security issue"}, notes.Security)
	assert.Equal(t, []string{"Important: medication fridge plug", "💡 restarts clear memory"}, notes.Critical)
}

func TestExtractBlockersAndPhases(t *testing.T) {
	t.Parallel()

	e := NewDefault()

	assert.Equal(t, []string{"GitHub auth pending", "Blocked on sudo rights"}, e.ExtractBlockers("GitHub auth pending\nall good\nBlocked on sudo rights"))
	assert.Equal(t, []string{"Phase 1: memory management COMPLETE"}, e.ExtractCompletedPhases("Phase 1: memory management COMPLETE\nPhase 2 in progress"))
}

func TestKeyPointsRoutesReportFields(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	report := domain.SessionReport{
		ID:              "0190-a",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Accomplishments: "Implemented caching layer",
		CurrentState:    "stable",
		NextSteps:       "1. Add metrics\n2. Write tests",
		Notes:           "🔒 keep tokens out of git\nImportant: restart nightly",
	}

	points := NewDefault().KeyPoints(report)

	assert.Equal(t, domain.SessionID("0190-a"), points.SessionID)
	assert.Equal(t, start, points.SessionStart)
	assert.Equal(t, start.Add(time.Hour), points.SessionTime)
	assert.Equal(t, "stable", points.CurrentState)
	assert.Equal(t, []string{"Implemented caching layer"}, points.TechnicalDecisions)
	assert.Equal(t, []string{"1. Add metrics", "2. Write tests"}, points.NextSteps)
	assert.Equal(t, []string{"🔒 keep tokens out of git"}, points.Security)
	assert.Equal(t, []string{"Important: restart nightly"}, points.Critical)
}

func TestLoadTablesOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tables.toml")
	require.NoError(t, os.WriteFile(path, []byte("decision_verbs = [\"shipped\"]\ncondense_max_lines = 3\n"), 0o600))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"shipped"}, tables.DecisionVerbs)
	assert.Equal(t, 3, tables.CondenseMaxLines)
	assert.Equal(t, DefaultTables().ArchitectureKeywords, tables.ArchitectureKeywords)

	e := New(tables)
	assert.Equal(t, []string{"Shipped v1"}, e.ExtractDecisions("Shipped v1\nDecided nothing"))
}

func TestLoadTablesEmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	tables, err := LoadTables("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTables(), tables)
}

func TestLoadTablesRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tables.toml")
	require.NoError(t, os.WriteFile(path, []byte("decision_verbs = ["), 0o600))

	_, err := LoadTables(path)
	assert.ErrorContains(t, err, "decode extractor tables")
}
