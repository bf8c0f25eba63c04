package entity

import (
	"time"

	"github.com/google/uuid"
)

type ArtifactType string

const (
	ArtifactReport     ArtifactType = "report"
	ArtifactEmail      ArtifactType = "email"
	ArtifactSummary    ArtifactType = "summary"
	ArtifactScreenshot ArtifactType = "screenshot"
)

// Artifact is a generated document or captured image tied to a meeting session.
type Artifact struct {
	ID        uuid.UUID
	SessionID string
	Type      ArtifactType
	Title     string
	Filename  string
	MimeType  string
	Content   string // text documents
	Data      []byte // binary captures
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

func (a *Artifact) IsDocument() bool {
	return a.Type != ArtifactScreenshot
}
