package contract

import (
	"context"

	"meeting-agent-be/internal/entity"

	"github.com/google/uuid"
)

type ArtifactRepository interface {
	Create(ctx context.Context, artifact *entity.Artifact) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Artifact, error) // nil, nil when absent
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}
