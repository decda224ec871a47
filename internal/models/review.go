package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Review is a testimonial shown on the home page.
type Review struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	UserID      *string `json:"user_id" gorm:"size:255;index"`
	AuthorName  string  `json:"author_name" gorm:"not null;size:100"`
	ProgramSlug *string `json:"program_slug" gorm:"size:120;index"`
	Content     string  `json:"content" gorm:"type:text;not null"`
	Rating      int     `json:"rating" gorm:"not null;default:5"`
	Featured    bool    `json:"featured" gorm:"not null;default:false;index"`
	Likes       LikeSet `json:"likes" gorm:"type:jsonb;not null;default:'[]'"`

	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Computed fields (not stored)
	LikeCount int  `json:"like_count" gorm:"-"`
	LikedByMe bool `json:"liked_by_me" gorm:"-"`
}

func (Review) TableName() string {
	return "reviews"
}

// LikeSet is the ids of viewers who liked something, in first-like order and
// without duplicates. Older rows stored likes either as a JSON array (of
// strings or numbers) or as a comma separated string; both decode into the
// same set and it is always written back as a JSON array of strings.
type LikeSet []string

// NewLikeSet builds a normalized set from raw ids.
func NewLikeSet(ids ...string) LikeSet {
	set := make(LikeSet, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	return set
}

func (s LikeSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle adds id when absent and removes it when present. It reports whether
// id is liked after the call.
func (s LikeSet) Toggle(id string) (LikeSet, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return NewLikeSet(s...), false
	}
	if s.Contains(id) {
		out := make(LikeSet, 0, len(s))
		for _, v := range s {
			if v != id {
				out = append(out, v)
			}
		}
		return out, false
	}
	return NewLikeSet(append(append(LikeSet{}, s...), id)...), true
}

func (s LikeSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

func (s *LikeSet) UnmarshalJSON(data []byte) error {
	parsed, err := parseLikes(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s LikeSet) Value() (driver.Value, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *LikeSet) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = LikeSet{}
		return nil
	case []byte:
		return s.scanBytes(v)
	case string:
		return s.scanBytes([]byte(v))
	default:
		return fmt.Errorf("unsupported likes type %T", value)
	}
}

func (s *LikeSet) scanBytes(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '[' && trimmed[0] != '"' && !bytes.Equal(trimmed, []byte("null")) {
		*s = NewLikeSet(strings.Split(string(trimmed), ",")...)
		return nil
	}
	return s.UnmarshalJSON(trimmed)
}

func parseLikes(data []byte) (LikeSet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return LikeSet{}, nil
	}

	switch trimmed[0] {
	case '"':
		var csv string
		if err := json.Unmarshal(trimmed, &csv); err != nil {
			return nil, fmt.Errorf("invalid likes string: %w", err)
		}
		return NewLikeSet(strings.Split(csv, ",")...), nil
	case '[':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var raw []interface{}
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid likes array: %w", err)
		}
		ids := make([]string, 0, len(raw))
		for _, item := range raw {
			switch v := item.(type) {
			case string:
				ids = append(ids, v)
			case json.Number:
				ids = append(ids, v.String())
			case nil:
			default:
				return nil, fmt.Errorf("invalid like id %v", v)
			}
		}
		return NewLikeSet(ids...), nil
	default:
		return nil, fmt.Errorf("invalid likes value %q", string(trimmed))
	}
}
