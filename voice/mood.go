package voice

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

type Mood string

const (
	Eerie       Mood = "eerie"
	Emotional   Mood = "emotional"
	Storyteller Mood = "storyteller"
	Playful     Mood = "playful"
	Whisper     Mood = "whisper"
)

const (
	shortText = 50
	longText  = 150
)

//go:embed moods.yaml
var defaultMoods []byte

// MoodRule scores one mood: weight per matched keyword, plus a bonus for
// short (<50 chars) or long (>150 chars) text.
type MoodRule struct {
	Mood           Mood     `yaml:"mood"`
	Keywords       []string `yaml:"keywords"`
	Weight         int      `yaml:"weight"`
	ShortTextBonus int      `yaml:"short_text_bonus"`
	LongTextBonus  int      `yaml:"long_text_bonus"`
}

// MoodTable is an ordered rule list. Order breaks ties.
type MoodTable struct {
	Rules []MoodRule
}

var defaultTable = sync.OnceValue(func() *MoodTable {
	t, err := ParseMoodTable(defaultMoods)
	if err != nil {
		panic(fmt.Sprintf("embedded mood table: %v", err))
	}
	return t
})

// DefaultMoodTable is the built-in keyword table.
func DefaultMoodTable() *MoodTable { return defaultTable() }

func ParseMoodTable(data []byte) (*MoodTable, error) {
	var rules []MoodRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse mood table: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("parse mood table: no rules")
	}
	seen := make(map[Mood]bool, len(rules))
	for i, r := range rules {
		if _, ok := presets[r.Mood]; !ok {
			return nil, fmt.Errorf("mood table rule %d: unknown mood %q", i, r.Mood)
		}
		if seen[r.Mood] {
			return nil, fmt.Errorf("mood table rule %d: duplicate mood %q", i, r.Mood)
		}
		seen[r.Mood] = true
		for j, k := range r.Keywords {
			rules[i].Keywords[j] = strings.ToLower(k)
		}
	}
	return &MoodTable{Rules: rules}, nil
}

func LoadMoodTable(r io.Reader) (*MoodTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read mood table: %w", err)
	}
	return ParseMoodTable(data)
}

func LoadMoodFile(path string) (*MoodTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadMoodTable(f)
}

// Detect scores text against every rule. Blank text or an all-zero score
// yields Storyteller.
func (t *MoodTable) Detect(text string) Mood {
	if strings.TrimSpace(text) == "" {
		return Storyteller
	}
	lower := strings.ToLower(text)
	n := utf8.RuneCountInString(text)

	best, bestScore := Storyteller, 0
	for _, r := range t.Rules {
		score := 0
		for _, k := range r.Keywords {
			if strings.Contains(lower, k) {
				score += r.Weight
			}
		}
		if n < shortText {
			score += r.ShortTextBonus
		}
		if n > longText {
			score += r.LongTextBonus
		}
		if score > bestScore {
			best, bestScore = r.Mood, score
		}
	}
	return best
}
