package mapper

import (
	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/model"
)

type ReferenceMapper struct{}

func NewReferenceMapper() *ReferenceMapper {
	return &ReferenceMapper{}
}

func (m *ReferenceMapper) ToEntity(r *model.ReferenceItem) *entity.ReferenceItem {
	if r == nil {
		return nil
	}
	return &entity.ReferenceItem{
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		Requirement: r.Requirement,
		Status:      r.Status,
		Rank:        r.Rank,
		UpdatedAt:   r.UpdatedAt,
	}
}
