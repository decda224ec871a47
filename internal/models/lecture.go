package models

import (
	"time"

	"gorm.io/gorm"
)

type LectureLevel string

const (
	LevelBeginner     LectureLevel = "beginner"
	LevelIntermediate LectureLevel = "intermediate"
	LevelAdvanced     LectureLevel = "advanced"
	LevelMasterCommon LectureLevel = "master_common"
	LevelMaster       LectureLevel = "master"
)

func (l LectureLevel) IsValid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced, LevelMasterCommon, LevelMaster:
		return true
	}
	return false
}

type Lecture struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	ProgramID    uint         `json:"program_id" gorm:"not null;index"`
	Title        string       `json:"title" gorm:"not null;size:200"`
	Description  string       `json:"description" gorm:"type:text"`
	Category     string       `json:"category" gorm:"size:100;index"`
	Level        LectureLevel `json:"level" gorm:"not null;size:30;index"`
	CohortNumber *string      `json:"cohort_number" gorm:"size:20;index"` // only meaningful for LevelMaster
	Duration     int          `json:"duration" gorm:"not null;default:0"` // seconds
	EmbedURL     string       `json:"embed_url,omitempty" gorm:"size:500"`
	SortOrder    int          `json:"sort_order" gorm:"not null;default:0;index"`

	// Navigation
	PreviousLectureID *uint `json:"previous_lecture_id"`
	NextLectureID     *uint `json:"next_lecture_id"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Program *Program `json:"program,omitempty" gorm:"foreignKey:ProgramID"`
}

func (Lecture) TableName() string {
	return "lectures"
}

// Cohort returns the cohort number or "" when unset.
func (l *Lecture) Cohort() string {
	if l == nil || l.CohortNumber == nil {
		return ""
	}
	return *l.CohortNumber
}
