// Package timetable is the read-only source of weekly class slots, keyed by
// institution and weekday. Slots are externally owned; this package only
// queries and normalizes them.
package timetable

import (
	"context"
	"time"
)

// ClassSlot is one recurring weekly class occurrence.
type ClassSlot struct {
	InstitutionID string
	CourseID      string // short code users select, e.g. "CS201"
	CourseTitle   string // full display title, falls back to CourseID
	Weekday       time.Weekday
	StartMinutes  int // minutes since local midnight
	Room          string
	Instructor    string
}

// StartTime returns the slot's wall-clock start as HH:MM.
func (s ClassSlot) StartTime() string {
	return FormatMinutes(s.StartMinutes)
}

// Store provides per-institution slot lookup.
type Store interface {
	SlotsFor(ctx context.Context, institutionID string, weekday time.Weekday) ([]ClassSlot, error)
}
