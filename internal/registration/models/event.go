package models

import (
	"time"

	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
)

// Event is a capacity-bounded activity.
// Invariant: MaxCapacity > 0 and the live registration count never exceeds it.
// The count is always derived from registration rows; no counter is stored.
type Event struct {
	ID          id.EventID `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Venue       string     `json:"venue"`
	StartsAt    time.Time  `json:"starts_at"`
	MaxCapacity int        `json:"max_capacity"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewEvent validates and builds an event.
func NewEvent(title, description, venue string, startsAt time.Time, maxCapacity int, now time.Time) (*Event, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event title is required")
	}
	if maxCapacity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event capacity must be positive")
	}
	return &Event{
		ID:          id.NewEventID(),
		Title:       title,
		Description: description,
		Venue:       venue,
		StartsAt:    startsAt,
		MaxCapacity: maxCapacity,
		CreatedAt:   now,
	}, nil
}

// HasRoomFor reports whether one more registration fits given the current count.
func (e *Event) HasRoomFor(current int) bool {
	return current < e.MaxCapacity
}

// EventSummary is an event with its live signup count.
type EventSummary struct {
	Event
	Signups int  `json:"signups"`
	IsFull  bool `json:"is_full"`
}

// Summarize pairs an event with its count.
func Summarize(e Event, signups int) EventSummary {
	return EventSummary{Event: e, Signups: signups, IsFull: !e.HasRoomFor(signups)}
}
