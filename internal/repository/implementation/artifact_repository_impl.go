package implementation

import (
	"context"
	"errors"

	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/mapper"
	"meeting-agent-be/internal/model"
	"meeting-agent-be/internal/repository/contract"
	"meeting-agent-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type artifactRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ArtifactMapper
}

func NewArtifactRepository(db *gorm.DB) contract.ArtifactRepository {
	return &artifactRepositoryImpl{db: db, mapper: mapper.NewArtifactMapper()}
}

func (r *artifactRepositoryImpl) Create(ctx context.Context, artifact *entity.Artifact) error {
	return r.db.WithContext(ctx).Create(r.mapper.ToModel(artifact)).Error
}

func (r *artifactRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.Artifact, error) {
	var row model.Artifact
	query := specification.ByID{ID: id}.Apply(r.db.WithContext(ctx))

	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&row), nil
}

func (r *artifactRepositoryImpl) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	query := specification.BySession{SessionID: sessionID}.Apply(r.db.WithContext(ctx).Model(&model.Artifact{}))
	err := query.Count(&count).Error
	return count, err
}
