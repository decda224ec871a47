package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post is an "insight" article. Content is markdown; ContentHTML is rendered on write.
type Post struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null;size:200"`
	Slug        string         `json:"slug" gorm:"uniqueIndex;not null;size:220"`
	Excerpt     string         `json:"excerpt" gorm:"size:500"`
	Content     string         `json:"content" gorm:"type:text"`
	ContentHTML string         `json:"content_html" gorm:"type:text"`
	Category    string         `json:"category" gorm:"size:100;index"`
	Tags        datatypes.JSON `json:"tags" gorm:"type:jsonb"`

	AuthorID   string `json:"author_id" gorm:"size:255;index"`
	AuthorName string `json:"author_name" gorm:"size:100"`

	CoverImageKey *string `json:"-" gorm:"size:500"`
	CoverImageURL *string `json:"cover_image_url" gorm:"size:1000"`

	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Post) TableName() string {
	return "posts"
}
