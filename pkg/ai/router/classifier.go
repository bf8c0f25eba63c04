package router

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var defaultPhrases []byte

// Category is who the utterance addresses.
type Category string

const (
	CategoryNone      Category = "NONE"
	CategoryAgent     Category = "AGENT"     // "Hey PM"
	CategoryAssistant Category = "ASSISTANT" // "Hey Claude"
)

// Intent is what the utterance asks for once the wake phrase is stripped.
type Intent string

const (
	IntentQuery      Intent = "QUERY"
	IntentDocument   Intent = "DOCUMENT"
	IntentContextual Intent = "CONTEXTUAL"
	IntentScreen     Intent = "SCREEN"
)

// Contextual data sources.
const (
	SourceCalendar  = "calendar"
	SourceMessaging = "messaging"
)

// assistant outranks agent when both match one utterance.
var categoryPriority = map[Category]int{
	CategoryAssistant: 0,
	CategoryAgent:     1,
}

type PhraseTable struct {
	Wake []struct {
		Category string   `yaml:"category"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"wake"`
	Intents []struct {
		Intent   string   `yaml:"intent"`
		Source   string   `yaml:"source"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"intents"`
}

// Classification is the routing decision for one finished utterance.
type Classification struct {
	Category   Category
	Intent     Intent
	Source     string // calendar | messaging when Intent is CONTEXTUAL
	WakePhrase string // the matched wake phrase as heard
	Text       string // utterance with the wake phrase removed
	Utterance  string // original utterance
}

func (c Classification) Matched() bool {
	return c.Category != CategoryNone
}

type wakeRule struct {
	category Category
	patterns []*regexp.Regexp
}

type intentRule struct {
	intent   Intent
	source   string
	patterns []*regexp.Regexp
}

// Classifier matches transcripts against an ordered phrase table.
type Classifier struct {
	wake    []wakeRule
	intents []intentRule
}

// LoadPhraseTable reads a YAML phrase table; an empty path yields the built-in one.
func LoadPhraseTable(path string) (PhraseTable, error) {
	raw := defaultPhrases
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return PhraseTable{}, fmt.Errorf("reading phrase table: %w", err)
		}
		raw = b
	}
	var table PhraseTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return PhraseTable{}, fmt.Errorf("parsing phrase table: %w", err)
	}
	return table, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func NewClassifier(table PhraseTable) (*Classifier, error) {
	c := &Classifier{}

	for _, w := range table.Wake {
		cat := Category(strings.ToUpper(w.Category))
		if _, ok := categoryPriority[cat]; !ok {
			return nil, fmt.Errorf("unknown wake category %q", w.Category)
		}
		res, err := compileAll(w.Patterns)
		if err != nil {
			return nil, err
		}
		c.wake = append(c.wake, wakeRule{category: cat, patterns: res})
	}
	sort.SliceStable(c.wake, func(i, j int) bool {
		return categoryPriority[c.wake[i].category] < categoryPriority[c.wake[j].category]
	})

	for _, in := range table.Intents {
		intent := Intent(strings.ToUpper(in.Intent))
		switch intent {
		case IntentDocument, IntentScreen, IntentQuery:
		case IntentContextual:
			if in.Source != SourceCalendar && in.Source != SourceMessaging {
				return nil, fmt.Errorf("contextual intent needs a calendar or messaging source, got %q", in.Source)
			}
		default:
			return nil, fmt.Errorf("unknown intent %q", in.Intent)
		}
		res, err := compileAll(in.Patterns)
		if err != nil {
			return nil, err
		}
		c.intents = append(c.intents, intentRule{intent: intent, source: in.Source, patterns: res})
	}
	return c, nil
}

// MustDefaultClassifier builds the classifier from the embedded table.
func MustDefaultClassifier() *Classifier {
	table, err := LoadPhraseTable("")
	if err != nil {
		panic(err)
	}
	c, err := NewClassifier(table)
	if err != nil {
		panic(err)
	}
	return c
}

const trimCutset = " ,.!?;:-\"'`~"

// Classify decides which pipeline, if any, an utterance belongs to.
func (c *Classifier) Classify(utterance string) Classification {
	result := Classification{Category: CategoryNone, Intent: IntentQuery, Utterance: utterance}
	text := strings.TrimSpace(utterance)
	if text == "" {
		return result
	}

	for _, rule := range c.wake {
		for _, re := range rule.patterns {
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			result.Category = rule.category
			result.WakePhrase = strings.Trim(text[loc[0]:loc[1]], trimCutset)
			result.Text = remainder(text, loc)
			result.Intent, result.Source = c.intentOf(result.Text)
			return result
		}
	}
	return result
}

// remainder prefers what follows the wake phrase and falls back to what
// preceded it ("what's on my calendar, hey PM").
func remainder(text string, loc []int) string {
	after := strings.Trim(text[loc[1]:], trimCutset)
	if after != "" {
		return after
	}
	return strings.Trim(text[:loc[0]], trimCutset)
}

func (c *Classifier) intentOf(text string) (Intent, string) {
	if text == "" {
		return IntentQuery, ""
	}
	for _, rule := range c.intents {
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				return rule.intent, rule.source
			}
		}
	}
	return IntentQuery, ""
}
