package model

import "time"

const (
	// DefaultColor is the swatch assigned to new or color-less lessons.
	DefaultColor = "#FFDDC1"

	// ChipColor is used when rendering an event whose color is empty.
	ChipColor = "#3498db"

	// DefaultDuration is applied when a lesson is saved without an end.
	DefaultDuration = time.Hour
)

// CalendarEvent is a single lesson-schedule entry as held by the client.
// ID is assigned by the remote store; zero means the event was never saved.
type CalendarEvent struct {
	ID          int64
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Color       string
}

// DisplayColor returns the color to paint the event chip with.
func (e CalendarEvent) DisplayColor() string {
	if e.Color == "" {
		return ChipColor
	}
	return e.Color
}

// Input returns the write payload that would recreate e.
func (e CalendarEvent) Input() EventInput {
	return EventInput{
		Title:       e.Title,
		Start:       e.Start,
		End:         e.End,
		Description: e.Description,
		Color:       e.Color,
	}
}

// EventInput is the body of a create or update request.
type EventInput struct {
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Color       string
}

// SameDay reports whether a and b fall on the same wall-clock calendar day
// in their own locations.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
