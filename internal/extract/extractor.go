// Package extract turns free-text session reports into categorized fragments.
// It is a syntactic triage over keyword tables, not a classifier: a line is
// kept when it contains the right words, whatever it means.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/bnema/assistant-continuity/internal/domain"
)

const (
	maxDecisions    = 5
	maxArchitecture = 3
	maxNextSteps    = 5
	maxBlockers     = 10
)

var (
	numberedItem     = regexp.MustCompile(`^\d+[.)]`)
	listItemPrefixes = []string{"-", "*", "•"}
)

type Notes struct {
	Security []string
	Critical []string
}

type Extractor struct {
	tables Tables
}

func New(tables Tables) *Extractor {
	return &Extractor{tables: tables.normalized()}
}

func NewDefault() *Extractor {
	return New(DefaultTables())
}

func (e *Extractor) Condense(text string) string {
	if len(text) < e.tables.CondenseMinLength {
		return text
	}

	kept := make([]string, 0, e.tables.CondenseMaxLines)
	for _, line := range lines(text) {
		if len(kept) == e.tables.CondenseMaxLines {
			break
		}
		if e.hasMarkerPrefix(line) || len(line) > e.tables.CondenseLineMinLength {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n")
}

func (e *Extractor) ExtractDecisions(text string) []string {
	decisions := make([]string, 0, maxDecisions)
	for _, line := range lines(text) {
		if len(decisions) == maxDecisions {
			break
		}

		lower := strings.ToLower(line)
		switch {
		case containsAny(lower, e.tables.DecisionVerbs):
			decisions = append(decisions, line)
		case containsAny(lower, e.tables.SystemNouns) && e.hasAchievement(lower):
			decisions = append(decisions, line)
		case containsAny(lower, e.tables.DomainNouns) && containsAny(lower, e.tables.DomainVerbs):
			decisions = append(decisions, line)
		}
	}

	return decisions
}

func (e *Extractor) ExtractArchitectureChanges(text string) []string {
	changes := make([]string, 0, maxArchitecture)
	for _, line := range lines(text) {
		if len(changes) == maxArchitecture {
			break
		}

		lower := strings.ToLower(line)
		if containsAny(lower, e.tables.ArchitectureKeywords) || containsAny(lower, e.tables.RestructuringVerbs) {
			changes = append(changes, line)
		}
	}

	return changes
}

func (e *Extractor) ExtractNextSteps(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{}
	}

	steps := make([]string, 0, maxNextSteps)
	for _, line := range lines(text) {
		if len(steps) == maxNextSteps {
			break
		}

		lower := strings.ToLower(line)
		switch {
		case e.isListItem(line):
			steps = append(steps, line)
		case containsAny(lower, e.tables.ActionVerbs):
			steps = append(steps, line)
		case containsAny(lower, e.tables.ModalPhrases):
			steps = append(steps, line)
		}
	}

	if len(steps) == 0 {
		return []string{trimmed}
	}

	return steps
}

// ExtractCriticalNotes sorts lines into the security or critical bucket.
// Security wins when a line qualifies for both.
func (e *Extractor) ExtractCriticalNotes(text string) Notes {
	notes := Notes{Security: []string{}, Critical: []string{}}
	for _, line := range lines(text) {
		lower := strings.ToLower(line)
		switch {
		case containsAny(lower, e.tables.SecurityWords) || hasMarker(line, e.tables.Markers.Security):
			notes.Security = append(notes.Security, line)
		case containsAny(lower, e.tables.CriticalWords) || hasMarker(line, e.tables.Markers.Insight):
			notes.Critical = append(notes.Critical, line)
		}
	}

	return notes
}

func (e *Extractor) ExtractBlockers(text string) []string {
	blockers := make([]string, 0)
	for _, line := range lines(text) {
		if len(blockers) == maxBlockers {
			break
		}
		if containsAny(strings.ToLower(line), e.tables.BlockerWords) {
			blockers = append(blockers, line)
		}
	}

	return blockers
}

func (e *Extractor) ExtractCompletedPhases(text string) []string {
	phases := make([]string, 0)
	for _, line := range lines(text) {
		lower := strings.ToLower(line)
		if containsAny(lower, e.tables.PhaseWords) && containsAny(lower, e.tables.PhaseDoneWords) {
			phases = append(phases, line)
		}
	}

	return phases
}

// KeyPoints runs every extractor over the fields of a report they apply to.
func (e *Extractor) KeyPoints(report domain.SessionReport) domain.SessionKeyPoints {
	notes := e.ExtractCriticalNotes(report.Notes)

	return domain.SessionKeyPoints{
		SessionID:           report.ID,
		SessionStart:        report.StartTime,
		SessionTime:         report.EndTime,
		Accomplishments:     e.Condense(report.Accomplishments),
		CurrentState:        e.Condense(report.CurrentState),
		TechnicalDecisions:  e.ExtractDecisions(joinFields(report.Accomplishments, report.Notes)),
		ArchitectureChanges: e.ExtractArchitectureChanges(joinFields(report.Accomplishments, report.CurrentState)),
		NextSteps:           e.ExtractNextSteps(report.NextSteps),
		Security:            notes.Security,
		Critical:            notes.Critical,
		Blockers:            e.ExtractBlockers(joinFields(report.CurrentState, report.Notes)),
		CompletedPhases:     e.ExtractCompletedPhases(report.Accomplishments),
	}
}

func (e *Extractor) hasMarkerPrefix(line string) bool {
	for _, marker := range e.tables.Markers.all() {
		if marker != "" && strings.HasPrefix(line, marker) {
			return true
		}
	}
	return false
}

func (e *Extractor) hasAchievement(lower string) bool {
	if containsAny(lower, e.tables.AchievementVerbs) {
		return true
	}
	if e.tables.PastTenseSuffix == "" {
		return false
	}

	for _, word := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if len(word) > len(e.tables.PastTenseSuffix) && strings.HasSuffix(word, e.tables.PastTenseSuffix) {
			return true
		}
	}
	return false
}

func (e *Extractor) isListItem(line string) bool {
	if numberedItem.MatchString(line) {
		return true
	}
	for _, prefix := range listItemPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return hasMarker(line, e.tables.Markers.Launch)
}

func hasMarker(line, marker string) bool {
	return marker != "" && strings.Contains(line, marker)
}

func containsAny(lower string, words []string) bool {
	for _, word := range words {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// lines returns the trimmed, non-empty lines of text.
func lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func joinFields(fields ...string) string {
	return strings.Join(fields, "\n")
}
