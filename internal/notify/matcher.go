package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rahulmindslate/nextclass-notify/internal/directory"
	"github.com/rahulmindslate/nextclass-notify/internal/timetable"
)

// MatchOptions configures the window matcher.
type MatchOptions struct {
	DefaultLeadMinutes int            // used when a user has no valid preference
	ToleranceMinutes   int            // ± band around the target minute
	Location           *time.Location // timezone the timetable wall clocks live in
}

func (o MatchOptions) withDefaults() MatchOptions {
	if o.DefaultLeadMinutes < minLookaheadMinutes || o.DefaultLeadMinutes > maxLookaheadMinutes {
		o.DefaultLeadMinutes = defaultLookaheadMinutes
	}
	if o.ToleranceMinutes < 0 {
		o.ToleranceMinutes = 0
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Match computes which (user, slot) pairs fall inside the notification
// window at `now`. Pure with respect to its inputs: identical inputs yield
// an identical set of notifications, in stable (user, slot) order.
//
// Slot lookups are memoized per (institution, weekday) so each institution
// is fetched at most once per cycle; a failed lookup contributes one error
// and an empty slot list, never an abort.
func Match(
	ctx context.Context,
	now time.Time,
	users []directory.UserProfile,
	slots timetable.Store,
	opts MatchOptions,
) ([]MatchedNotification, []error) {
	opts = opts.withDefaults()

	type slotKey struct {
		institutionID string
		weekday       time.Weekday
	}
	cache := make(map[slotKey][]timetable.ClassSlot)
	failed := make(map[slotKey]bool)
	var errs []error

	lookup := func(key slotKey) []timetable.ClassSlot {
		if cached, ok := cache[key]; ok {
			return cached
		}
		if failed[key] {
			return nil
		}
		found, err := slots.SlotsFor(ctx, key.institutionID, key.weekday)
		if err != nil {
			failed[key] = true
			errs = append(errs, fmt.Errorf("slots for %s (%s): %w", key.institutionID, key.weekday, err))
			return nil
		}
		cache[key] = found
		return found
	}

	var matches []MatchedNotification
	seen := make(map[string]bool) // userID+courseID+start identity within the cycle

	for _, user := range users {
		if user.PushToken == "" || len(user.SelectedCourses) == 0 || user.InstitutionID == "" {
			continue
		}

		lead := clampLead(user.NotifyMinutesBefore, opts.DefaultLeadMinutes)
		target := now.Add(time.Duration(lead) * time.Minute).In(opts.Location)
		targetMinutes := target.Hour()*60 + target.Minute()

		for _, slot := range lookup(slotKey{user.InstitutionID, target.Weekday()}) {
			if !user.HasCourse(slot.CourseID) {
				continue
			}
			if abs(slot.StartMinutes-targetMinutes) > opts.ToleranceMinutes {
				continue
			}

			identity := user.UserID + "|" + slot.CourseID + "|" + slot.StartTime()
			if seen[identity] {
				continue
			}
			seen[identity] = true

			matches = append(matches, MatchedNotification{
				UserID:      user.UserID,
				UserName:    user.Name,
				PushToken:   user.PushToken,
				CourseID:    slot.CourseID,
				Slot:        slot,
				StartsAt:    startInstant(target, slot.StartMinutes),
				LeadMinutes: lead,
			})
		}
	}
	return matches, errs
}

// startInstant anchors a slot's minutes-since-midnight on the target day.
func startInstant(target time.Time, startMinutes int) time.Time {
	return time.Date(target.Year(), target.Month(), target.Day(),
		startMinutes/60, startMinutes%60, 0, 0, target.Location())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
