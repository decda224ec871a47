package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ServiceSource = "catalog-service"
	EventVersion  = "1.0"
)

// Event types. Each type is published on the topic of the same name.
const (
	TypeCatalogChanged = "catalog.changed"
	TypeWaitlistJoined = "waitlist.joined"
)

// Catalog entities carried by catalog.changed
const (
	EntityProgram = "program"
	EntityLecture = "lecture"
)

// Actions carried by catalog.changed
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event is the envelope of every message this service publishes
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// CatalogChangedData describes an admin write to a program or lecture.
type CatalogChangedData struct {
	Entity    string `json:"entity"`
	Action    string `json:"action"`
	EntityID  uint   `json:"entity_id"`
	ProgramID uint   `json:"program_id,omitempty"`
	Slug      string `json:"slug,omitempty"`
}

type WaitlistJoinedData struct {
	EntryID     uint   `json:"entry_id"`
	Email       string `json:"email"`
	ProgramSlug string `json:"program_slug"`
}

func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    ServiceSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func NewCatalogChangedEvent(data CatalogChangedData) *Event {
	return NewEvent(TypeCatalogChanged, data)
}

func NewWaitlistJoinedEvent(data WaitlistJoinedData) *Event {
	return NewEvent(TypeWaitlistJoined, data)
}

// DecodeData re-decodes the Data of a received event into dest.
func (e *Event) DecodeData(dest interface{}) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode %s event data: %w", e.Type, err)
	}
	return nil
}
