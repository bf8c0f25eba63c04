package artifact

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/internal/repository/contract"
	"meeting-agent-be/pkg/events"

	"github.com/google/uuid"
)

const module = "ARTIFACT"

var (
	ErrNotFound = errors.New("artifact not found")
	ErrEmpty    = errors.New("artifact has no content")
)

// Artifact is what a pipeline or the client hands over for persistence.
type Artifact struct {
	SessionID string
	Type      entity.ArtifactType
	Title     string
	Content   string
	Data      []byte
	MimeType  string
}

// Descriptor is the stored-file reference returned to the client.
type Descriptor struct {
	ID       string
	Filename string
	URL      string
	Type     entity.ArtifactType
	Title    string
	Content  string
}

type Service struct {
	repo      contract.ArtifactRepository
	publisher events.Publisher
	baseURL   string
	logger    logger.ILogger
	now       func() time.Time
}

// NewService accepts a nil publisher.
func NewService(repo contract.ArtifactRepository, publisher events.Publisher, baseURL string, log logger.ILogger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    log,
		now:       time.Now,
	}
}

func (s *Service) Save(ctx context.Context, a Artifact) (*Descriptor, error) {
	if strings.TrimSpace(a.Content) == "" && len(a.Data) == 0 {
		return nil, ErrEmpty
	}
	if a.MimeType == "" {
		a.MimeType = "text/markdown"
	}

	id := uuid.New()
	now := s.now()
	record := &entity.Artifact{
		ID:        id,
		SessionID: a.SessionID,
		Type:      a.Type,
		Title:     a.Title,
		Filename:  filename(a, now, id),
		MimeType:  a.MimeType,
		Content:   a.Content,
		Data:      a.Data,
		Metadata:  map[string]interface{}{"bytes": len(a.Data) + len(a.Content)},
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}

	desc := &Descriptor{
		ID:       id.String(),
		Filename: record.Filename,
		URL:      s.URL(id.String()),
		Type:     a.Type,
		Title:    a.Title,
		Content:  a.Content,
	}

	if s.publisher != nil {
		ev := events.New(events.TypeArtifactSaved, map[string]interface{}{
			"session_id":  a.SessionID,
			"artifact_id": desc.ID,
			"type":        string(a.Type),
			"filename":    desc.Filename,
		})
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn(module, "Failed to publish artifact event", map[string]interface{}{"error": err.Error()})
		}
	}

	s.logger.Info(module, "Artifact saved", map[string]interface{}{
		"session_id":  a.SessionID,
		"artifact_id": desc.ID,
		"type":        string(a.Type),
	})
	return desc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*entity.Artifact, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	a, err := s.repo.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// CountForSession reports how many artifacts a session produced.
func (s *Service) CountForSession(ctx context.Context, sessionID string) (int64, error) {
	return s.repo.CountBySession(ctx, sessionID)
}

func (s *Service) URL(id string) string {
	return s.baseURL + "/api/artifacts/" + id
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func filename(a Artifact, at time.Time, id uuid.UUID) string {
	stem := nonSlug.ReplaceAllString(strings.ToLower(a.Title), "-")
	stem = strings.Trim(stem, "-")
	if len(stem) > 48 {
		stem = strings.TrimRight(stem[:48], "-")
	}
	if stem == "" {
		stem = string(a.Type)
	}
	return fmt.Sprintf("%s-%s-%s.%s", stem, at.UTC().Format("20060102-150405"), id.String()[:8], extension(a.MimeType))
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "text/plain":
		return "txt"
	default:
		return "md"
	}
}
