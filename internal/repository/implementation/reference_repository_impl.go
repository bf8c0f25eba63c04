package implementation

import (
	"context"

	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/mapper"
	"meeting-agent-be/internal/model"
	"meeting-agent-be/internal/repository/contract"
	"meeting-agent-be/internal/repository/specification"

	"gorm.io/gorm"
)

type referenceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ReferenceMapper
}

func NewReferenceRepository(db *gorm.DB) contract.ReferenceRepository {
	return &referenceRepositoryImpl{db: db, mapper: mapper.NewReferenceMapper()}
}

func (r *referenceRepositoryImpl) ListRanked(ctx context.Context, limit int) ([]*entity.ReferenceItem, error) {
	var rows []*model.ReferenceItem
	query := r.db.WithContext(ctx)
	for _, spec := range []specification.Specification{
		specification.OrderBy{Field: "rank"},
		specification.Pagination{Limit: limit},
	} {
		query = spec.Apply(query)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]*entity.ReferenceItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, r.mapper.ToEntity(row))
	}
	return items, nil
}
