// Package notify is the class-reminder engine: every cycle it matches users'
// selected courses against their institution's timetable, dedupes against
// the sent ledger, and fans the surviving notifications out to FCM.
//
// Pipeline: load users → match slots in the lookahead window → dedupe →
// dispatch via a bounded worker pool → publish cycle status.
package notify

import (
	"errors"
	"time"

	"github.com/rahulmindslate/nextclass-notify/internal/timetable"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultLookaheadMinutes = 10
	minLookaheadMinutes     = 1
	maxLookaheadMinutes     = 60

	// One ledger entry per user+slot+day; a day's worth of TTL is enough to
	// cover the weekly recurrence.
	ledgerTTL = 24 * time.Hour

	// In-memory ledger bound before a full clear (no per-entry TTL there).
	memoryLedgerMax = 10000
)

// ErrCycleInFlight is returned by Trigger when a cycle is already executing.
var ErrCycleInFlight = errors.New("notification cycle already in flight")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// MatchedNotification is one (user, slot) pair due for delivery this cycle.
// Ephemeral: built by the matcher, consumed by the dispatcher, never stored.
type MatchedNotification struct {
	UserID      string
	UserName    string
	PushToken   string
	CourseID    string
	Slot        timetable.ClassSlot
	StartsAt    time.Time // computed start instant in the timetable timezone
	LeadMinutes int       // effective lookahead used for this user
}

// DedupKey identifies a notification for the sent ledger:
// one per user+course+weekday+start time, matching weekly slot recurrence.
func (m MatchedNotification) DedupKey() string {
	return m.UserID + "_" + m.CourseID + "_" + m.StartsAt.Weekday().String() + "_" + m.Slot.StartTime()
}

// Status classifies one delivery attempt.
type Status string

const (
	StatusSent         Status = "sent"
	StatusInvalidToken Status = "invalid_token"
	StatusTransient    Status = "transient_failure"
)

// DispatchOutcome reports one delivery attempt, in input order.
type DispatchOutcome struct {
	Notification MatchedNotification
	Status       Status
	ErrorDetail  string
}

// CycleStatus is the snapshot published at the end of every cycle and read
// by the status endpoint.
type CycleStatus struct {
	Running         bool      `json:"running"`
	LastCycleID     string    `json:"lastCycleId,omitempty"`
	LastRunAt       time.Time `json:"lastRunAt,omitzero"`
	LastRunDuration int64     `json:"lastRunDurationMs"`
	LastMatchCount  int       `json:"lastMatchCount"`
	LastSentCount   int       `json:"lastSentCount"`
	LastErrorCount  int       `json:"lastErrorCount"`
}

// clampLead returns a valid lookahead: the user's preference when it is in
// range, otherwise the configured default.
func clampLead(userMinutes, fallback int) int {
	if userMinutes >= minLookaheadMinutes && userMinutes <= maxLookaheadMinutes {
		return userMinutes
	}
	return fallback
}
