package contract

import (
	"context"

	"meeting-agent-be/internal/entity"
)

type ReferenceRepository interface {
	ListRanked(ctx context.Context, limit int) ([]*entity.ReferenceItem, error)
}
