package reference

import (
	"context"

	"meeting-agent-be/internal/repository/contract"
)

// RepositorySource reads the reference_items table.
type RepositorySource struct {
	repo  contract.ReferenceRepository
	limit int
}

func NewRepositorySource(repo contract.ReferenceRepository, limit int) *RepositorySource {
	return &RepositorySource{repo: repo, limit: limit}
}

func (s *RepositorySource) Fetch(ctx context.Context) ([]Item, error) {
	rows, err := s.repo.ListRanked(ctx, s.limit)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, Item{ID: r.ExternalID, Title: r.Title, Requirement: r.Requirement, Status: r.Status, Rank: r.Rank})
	}
	return items, nil
}
