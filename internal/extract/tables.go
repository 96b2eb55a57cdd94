package extract

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Markers are the line prefixes session reports use to tag a line's category.
type Markers struct {
	Accomplishment string `toml:"accomplishment"`
	Technical      string `toml:"technical"`
	Launch         string `toml:"launch"`
	Insight        string `toml:"insight"`
	Security       string `toml:"security"`
}

func (m Markers) all() []string {
	return []string{m.Accomplishment, m.Technical, m.Launch, m.Insight, m.Security}
}

// Tables holds every keyword list the extractor matches against. All matching
// is case-insensitive substring matching.
type Tables struct {
	Markers Markers `toml:"markers"`

	DecisionVerbs    []string `toml:"decision_verbs"`
	SystemNouns      []string `toml:"system_nouns"`
	AchievementVerbs []string `toml:"achievement_verbs"`
	PastTenseSuffix  string   `toml:"past_tense_suffix"`
	DomainNouns      []string `toml:"domain_nouns"`
	DomainVerbs      []string `toml:"domain_verbs"`

	ArchitectureKeywords []string `toml:"architecture_keywords"`
	RestructuringVerbs   []string `toml:"restructuring_verbs"`

	ActionVerbs  []string `toml:"action_verbs"`
	ModalPhrases []string `toml:"modal_phrases"`

	SecurityWords []string `toml:"security_words"`
	CriticalWords []string `toml:"critical_words"`
	BlockerWords  []string `toml:"blocker_words"`

	PhaseWords     []string `toml:"phase_words"`
	PhaseDoneWords []string `toml:"phase_done_words"`

	CondenseMinLength     int `toml:"condense_min_length"`
	CondenseLineMinLength int `toml:"condense_line_min_length"`
	CondenseMaxLines      int `toml:"condense_max_lines"`
}

func DefaultTables() Tables {
	return Tables{
		Markers: Markers{
			Accomplishment: "✅",
			Technical:      "🔧",
			Launch:         "🚀",
			Insight:        "💡",
			Security:       "🔒",
		},
		DecisionVerbs: []string{
			"decided", "chose", "selected", "implemented", "created", "built",
			"designed", "developed", "established", "fixed", "updated", "improved",
		},
		SystemNouns: []string{
			"system", "architecture", "framework", "solution", "approach", "method", "logic", "extraction",
		},
		AchievementVerbs: []string{"created", "built", "designed", "implemented", "fixed", "updated", "improved"},
		PastTenseSuffix:  "ed",
		DomainNouns: []string{
			"session", "manager", "extraction", "logic", "plain", "text", "inputs", "unstructured",
		},
		DomainVerbs: []string{"fixed", "improved", "updated", "created", "built"},
		ArchitectureKeywords: []string{
			"architecture", "system", "structure", "design", "framework", "pattern", "approach",
		},
		RestructuringVerbs: []string{"redesigned", "restructured", "reorganized", "refactored", "overhauled"},
		ActionVerbs: []string{
			"test", "implement", "create", "fix", "update", "build", "design", "complete", "verify", "run",
		},
		ModalPhrases:          []string{"should", "need to", "will"},
		SecurityWords:         []string{"security"},
		CriticalWords:         []string{"critical", "important"},
		BlockerWords:          []string{"blocked", "blocker", "waiting on", "waiting for", "pending"},
		PhaseWords:            []string{"phase"},
		PhaseDoneWords:        []string{"complete", "done", "finished"},
		CondenseMinLength:     100,
		CondenseLineMinLength: 20,
		CondenseMaxLines:      10,
	}
}

// LoadTables reads a TOML override file. Keys absent from the file keep their
// default values.
func LoadTables(path string) (Tables, error) {
	tables := DefaultTables()
	if strings.TrimSpace(path) == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read extractor tables: %w", err)
	}

	if err := toml.Unmarshal(data, &tables); err != nil {
		return Tables{}, fmt.Errorf("decode extractor tables: %w", err)
	}

	return tables, nil
}

func (t Tables) normalized() Tables {
	out := t
	out.DecisionVerbs = lowerAll(t.DecisionVerbs)
	out.SystemNouns = lowerAll(t.SystemNouns)
	out.AchievementVerbs = lowerAll(t.AchievementVerbs)
	out.PastTenseSuffix = strings.ToLower(t.PastTenseSuffix)
	out.DomainNouns = lowerAll(t.DomainNouns)
	out.DomainVerbs = lowerAll(t.DomainVerbs)
	out.ArchitectureKeywords = lowerAll(t.ArchitectureKeywords)
	out.RestructuringVerbs = lowerAll(t.RestructuringVerbs)
	out.ActionVerbs = lowerAll(t.ActionVerbs)
	out.ModalPhrases = lowerAll(t.ModalPhrases)
	out.SecurityWords = lowerAll(t.SecurityWords)
	out.CriticalWords = lowerAll(t.CriticalWords)
	out.BlockerWords = lowerAll(t.BlockerWords)
	out.PhaseWords = lowerAll(t.PhaseWords)
	out.PhaseDoneWords = lowerAll(t.PhaseDoneWords)
	return out
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		out = append(out, word)
	}
	return out
}
