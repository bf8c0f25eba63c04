package pipeline

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"meeting-agent-be/internal/entity"
	"meeting-agent-be/pkg/llm"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed document.schema.json
var documentSchemaJSON string

var documentSchema = mustCompileSchema(documentSchemaJSON, "document.schema.json")

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Assistant-side document phrases. Kept apart from the agent's table so the
// two wake words can evolve independently, but they accept the same verbs and
// nouns so both sides agree on what a document request is.
var (
	documentRequest = regexp.MustCompile(`(?i)\b(write|draft|create|generate|prepare|make|put together|compose|produce|send me|give me)\b.{0,40}\b(report|document|doc|email|e-mail|mail|memo|brief|summary|recap|minutes|write-?up)\b`)
	summarizeVerb   = regexp.MustCompile(`(?i)\bsummari[sz]e\b`)
	emailWords      = regexp.MustCompile(`(?i)\b(e-?mail|mail|memo|message to)\b`)
	summaryWords    = regexp.MustCompile(`(?i)\b(summary|summari[sz]e|recap|minutes)\b`)
)

// DetectDocumentType reports whether text asks for a document and which kind.
func DetectDocumentType(text string) (entity.ArtifactType, bool) {
	if !documentRequest.MatchString(text) && !summarizeVerb.MatchString(text) {
		return "", false
	}
	return DocumentTypeOf(text), true
}

// DocumentTypeOf picks the document kind from the nouns in a request that is
// already known to ask for a document. Anything not an email or a summary is
// a report.
func DocumentTypeOf(text string) entity.ArtifactType {
	switch {
	case emailWords.MatchString(text):
		return entity.ArtifactEmail
	case summaryWords.MatchString(text):
		return entity.ArtifactSummary
	default:
		return entity.ArtifactReport
	}
}

var documentInstructions = map[entity.ArtifactType]string{
	entity.ArtifactReport: "Write a status report in Markdown with the sections Overview, Progress, Risks and Next Steps. " +
		"Use bullet points under each section.",
	entity.ArtifactEmail: "Write a professional email in Markdown. Start with a 'Subject:' line, then a greeting, " +
		"a short body and a sign-off from the project team.",
	entity.ArtifactSummary: "Write a meeting summary in Markdown with the sections Discussion, Decisions and Action Items. " +
		"Name an owner for each action item when one was mentioned.",
}

const documentFormat = `Reply with a single JSON object and nothing else:
{"title": "<short title>", "body": "<the full document in Markdown>", "spoken": "<one sentence telling the meeting the document is ready>"}`

// Document is a generated artifact plus the line spoken about it.
type Document struct {
	Type   entity.ArtifactType
	Title  string
	Body   string
	Spoken string
}

type DocumentGenerator struct {
	llm llm.LLMProvider
	now func() time.Time
}

func NewDocumentGenerator(provider llm.LLMProvider) *DocumentGenerator {
	return &DocumentGenerator{llm: provider, now: time.Now}
}

// Generate asks the model for a document of the given type. Output that
// fails the schema is kept as the raw body.
func (g *DocumentGenerator) Generate(ctx context.Context, docType entity.ArtifactType, request, grounding string, history []llm.Message) (*Document, error) {
	instructions, ok := documentInstructions[docType]
	if !ok {
		instructions = documentInstructions[entity.ArtifactReport]
		docType = entity.ArtifactReport
	}

	system := strings.Join([]string{
		"You prepare written documents for a project team during a live meeting.",
		instructions,
		"Only use facts from the conversation and the reference records below. Mark anything unknown as TBD.",
		grounding,
		documentFormat,
	}, "\n\n")

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: request})

	raw, err := g.llm.Chat(ctx, messages, llm.WithTemperature(0.3), llm.WithMaxTokens(1500))
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", docType, err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, llm.ErrEmptyResponse
	}

	if doc, ok := parseDocument(raw); ok {
		doc.Type = docType
		return doc, nil
	}
	return &Document{
		Type:   docType,
		Title:  defaultTitle(docType, g.now()),
		Body:   raw,
		Spoken: fmt.Sprintf("I've drafted the %s and saved it for you.", docType),
	}, nil
}

func parseDocument(raw string) (*Document, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := raw[start : end+1]

	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, false
	}
	if err := documentSchema.Validate(value); err != nil {
		return nil, false
	}

	var out struct {
		Title  string `json:"title"`
		Body   string `json:"body"`
		Spoken string `json:"spoken"`
	}
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, false
	}
	return &Document{Title: out.Title, Body: out.Body, Spoken: out.Spoken}, true
}

func defaultTitle(docType entity.ArtifactType, at time.Time) string {
	name := string(docType)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return name + " " + at.Format("2006-01-02")
}
