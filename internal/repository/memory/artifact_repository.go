package memory

import (
	"context"
	"time"

	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ArtifactRepository keeps artifacts in process when no database is configured.
type ArtifactRepository struct {
	cache *cache.Cache
}

func NewArtifactRepository(ttl time.Duration) contract.ArtifactRepository {
	return &ArtifactRepository{cache: cache.New(ttl, 10*time.Minute)}
}

func (r *ArtifactRepository) Create(ctx context.Context, artifact *entity.Artifact) error {
	r.cache.Set(artifact.ID.String(), artifact, cache.DefaultExpiration)
	return nil
}

func (r *ArtifactRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Artifact, error) {
	if x, found := r.cache.Get(id.String()); found {
		return x.(*entity.Artifact), nil
	}
	return nil, nil
}

func (r *ArtifactRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	for _, item := range r.cache.Items() {
		if a, ok := item.Object.(*entity.Artifact); ok && a.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}
