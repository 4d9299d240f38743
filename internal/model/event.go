package model

import "time"

// EventStatus is the lifecycle stage of an event.
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventScheduled, EventActive, EventCompleted:
		return true
	}
	return false
}

// Event is a single attendance-taking occasion.
type Event struct {
	ID        int64       `gorm:"primaryKey" json:"id"`
	Name      string      `gorm:"size:256;not null" json:"name"`
	Date      time.Time   `gorm:"index;not null" json:"date"`
	Status    EventStatus `gorm:"size:16;not null;default:scheduled" json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
