package entity

import "time"

type ReferenceItem struct {
	ExternalID  string
	Title       string
	Requirement string
	Status      string
	Rank        int
	UpdatedAt   time.Time
}
