package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a discussion entry on a report.
type Comment struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	ReportID  string    `gorm:"type:uuid;not null;index" json:"reportId"`
	AuthorID  string    `gorm:"type:text;not null" json:"authorId"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}
