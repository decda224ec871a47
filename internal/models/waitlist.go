package models

import "time"

// WaitlistEntry records interest in a program the viewer cannot access yet.
type WaitlistEntry struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Email       string    `json:"email" gorm:"not null;size:255;uniqueIndex:idx_waitlist_email_program"`
	ProgramSlug string    `json:"program_slug" gorm:"not null;size:120;uniqueIndex:idx_waitlist_email_program;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist_entries"
}
