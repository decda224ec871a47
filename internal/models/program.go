package models

import (
	"time"

	"gorm.io/gorm"
)

type ProgramType string

const (
	ProgramMember ProgramType = "member"
	ProgramMaster ProgramType = "master"
)

// MembershipProgramSlug is the flagship member program. It is listed apart from
// the other programs on the home page.
const MembershipProgramSlug = "membership"

func (t ProgramType) IsValid() bool {
	return t == ProgramMember || t == ProgramMaster
}

type Program struct {
	ID              uint        `json:"id" gorm:"primaryKey"`
	Slug            string      `json:"slug" gorm:"uniqueIndex;not null;size:120"`
	Title           string      `json:"title" gorm:"not null;size:200"`
	Description     string      `json:"description" gorm:"type:text"`
	Type            ProgramType `json:"type" gorm:"not null;size:20;index"`
	HasCommonCourse bool        `json:"has_common_course" gorm:"not null;default:false"`
	Price           int64       `json:"price" gorm:"not null;default:0"`
	ThumbnailURL    *string     `json:"thumbnail_url" gorm:"size:500"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Lectures []Lecture `json:"lectures,omitempty" gorm:"foreignKey:ProgramID"`
}

func (Program) TableName() string {
	return "programs"
}
