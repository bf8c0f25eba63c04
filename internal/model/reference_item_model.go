package model

import "time"

// ReferenceItem is a row of the externally maintained task list the
// assistant grounds its answers on. Rows are written by other systems.
type ReferenceItem struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ExternalID  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Requirement string    `gorm:"type:text" json:"requirement"`
	Status      string    `gorm:"type:varchar(30);index" json:"status"`
	Rank        int       `gorm:"index" json:"rank"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ReferenceItem) TableName() string {
	return "reference_items"
}
