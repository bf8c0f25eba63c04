package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c := MustDefaultClassifier()

	tests := []struct {
		name         string
		utterance    string
		wantCategory Category
		wantIntent   Intent
		wantSource   string
		wantText     string
	}{
		{
			name:         "no wake phrase",
			utterance:    "Let's move on to the budget review.",
			wantCategory: CategoryNone,
			wantIntent:   IntentQuery,
		},
		{
			name:         "mentioning pm without wake word",
			utterance:    "We should loop in the PM later.",
			wantCategory: CategoryNone,
			wantIntent:   IntentQuery,
		},
		{
			name:         "calendar query",
			utterance:    "Hey PM, what's on my calendar",
			wantCategory: CategoryAgent,
			wantIntent:   IntentContextual,
			wantSource:   SourceCalendar,
			wantText:     "what's on my calendar",
		},
		{
			name:         "dotted p.m.",
			utterance:    "hey P.M. do I have any meetings tomorrow?",
			wantCategory: CategoryAgent,
			wantIntent:   IntentContextual,
			wantSource:   SourceCalendar,
			wantText:     "do I have any meetings tomorrow",
		},
		{
			name:         "spaced p m",
			utterance:    "Okay p m, how are we tracking?",
			wantCategory: CategoryAgent,
			wantIntent:   IntentQuery,
			wantText:     "how are we tracking",
		},
		{
			name:         "document request",
			utterance:    "Hey PM, write me a status report",
			wantCategory: CategoryAgent,
			wantIntent:   IntentDocument,
			wantText:     "write me a status report",
		},
		{
			name:         "messaging request",
			utterance:    "Hey PM, send a message to the design channel",
			wantCategory: CategoryAgent,
			wantIntent:   IntentContextual,
			wantSource:   SourceMessaging,
			wantText:     "send a message to the design channel",
		},
		{
			name:         "screen query",
			utterance:    "Hey PM, what do you see on my screen?",
			wantCategory: CategoryAgent,
			wantIntent:   IntentScreen,
			wantText:     "what do you see on my screen",
		},
		{
			name:         "document beats screen",
			utterance:    "Hey PM, summarize this slide",
			wantCategory: CategoryAgent,
			wantIntent:   IntentDocument,
			wantText:     "summarize this slide",
		},
		{
			name:         "bare wake phrase is a plain query",
			utterance:    "Hey PM!",
			wantCategory: CategoryAgent,
			wantIntent:   IntentQuery,
		},
		{
			name:         "wake phrase at the end",
			utterance:    "what's on the agenda, hey PM",
			wantCategory: CategoryAgent,
			wantIntent:   IntentContextual,
			wantSource:   SourceCalendar,
			wantText:     "what's on the agenda",
		},
		{
			name:         "assistant beats agent",
			utterance:    "Hey Claude, ask PM about the budget",
			wantCategory: CategoryAssistant,
			wantIntent:   IntentQuery,
			wantText:     "ask PM about the budget",
		},
		{
			name:         "assistant screen hint",
			utterance:    "Hey Claude, what is this chart showing?",
			wantCategory: CategoryAssistant,
			wantIntent:   IntentScreen,
			wantText:     "what is this chart showing",
		},
		{
			name:         "assistant addressed by name",
			utterance:    "Claude, draft an email to the vendor",
			wantCategory: CategoryAssistant,
			wantIntent:   IntentDocument,
			wantText:     "draft an email to the vendor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.utterance)

			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantIntent, got.Intent)
			assert.Equal(t, tt.wantSource, got.Source)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.utterance, got.Utterance)
		})
	}
}

func TestNewClassifier_AssistantPriorityIgnoresFileOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phrases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
wake:
  - category: agent
    patterns: ['\bhey pm\b']
  - category: assistant
    patterns: ['\bhey claude\b']
intents: []
`), 0o644))

	table, err := LoadPhraseTable(path)
	require.NoError(t, err)
	c, err := NewClassifier(table)
	require.NoError(t, err)

	assert.Equal(t, CategoryAssistant, c.Classify("hey pm and hey claude").Category)
}

func TestNewClassifier_RejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown category", "wake:\n  - category: boss\n    patterns: ['x']\n"},
		{"bad regex", "wake:\n  - category: agent\n    patterns: ['(']\n"},
		{"contextual without source", "intents:\n  - intent: contextual\n    patterns: ['x']\n"},
		{"unknown intent", "intents:\n  - intent: dance\n    patterns: ['x']\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "p.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			table, err := LoadPhraseTable(path)
			require.NoError(t, err)

			_, err = NewClassifier(table)
			assert.Error(t, err)
		})
	}
}
