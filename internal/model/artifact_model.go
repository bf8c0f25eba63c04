package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Artifact struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID string         `gorm:"type:varchar(64);not null;index:idx_artifacts_session_created,priority:1" json:"session_id"`
	Type      string         `gorm:"type:varchar(20);not null" json:"type"`
	Title     string         `gorm:"type:varchar(200)" json:"title"`
	Filename  string         `gorm:"type:varchar(255);not null" json:"filename"`
	MimeType  string         `gorm:"type:varchar(50);not null" json:"mime_type"`
	Content   string         `gorm:"type:text" json:"content,omitempty"`
	Data      []byte         `gorm:"type:bytea" json:"-"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"default:CURRENT_TIMESTAMP;index:idx_artifacts_session_created,priority:2" json:"created_at"`
}

func (Artifact) TableName() string {
	return "artifacts"
}
