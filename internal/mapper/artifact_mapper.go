package mapper

import (
	"encoding/json"

	"meeting-agent-be/internal/entity"
	"meeting-agent-be/internal/model"

	"gorm.io/datatypes"
)

type ArtifactMapper struct{}

func NewArtifactMapper() *ArtifactMapper {
	return &ArtifactMapper{}
}

func (m *ArtifactMapper) ToEntity(a *model.Artifact) *entity.Artifact {
	if a == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(a.Metadata) > 0 {
		_ = json.Unmarshal(a.Metadata, &metadata)
	}

	return &entity.Artifact{
		ID:        a.ID,
		SessionID: a.SessionID,
		Type:      entity.ArtifactType(a.Type),
		Title:     a.Title,
		Filename:  a.Filename,
		MimeType:  a.MimeType,
		Content:   a.Content,
		Data:      a.Data,
		Metadata:  metadata,
		CreatedAt: a.CreatedAt,
	}
}

func (m *ArtifactMapper) ToModel(a *entity.Artifact) *model.Artifact {
	if a == nil {
		return nil
	}

	var metadata datatypes.JSON
	if len(a.Metadata) > 0 {
		if raw, err := json.Marshal(a.Metadata); err == nil {
			metadata = datatypes.JSON(raw)
		}
	}

	return &model.Artifact{
		ID:        a.ID,
		SessionID: a.SessionID,
		Type:      string(a.Type),
		Title:     a.Title,
		Filename:  a.Filename,
		MimeType:  a.MimeType,
		Content:   a.Content,
		Data:      a.Data,
		Metadata:  metadata,
		CreatedAt: a.CreatedAt,
	}
}
