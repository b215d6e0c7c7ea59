package notify

import (
	"fmt"
	"strings"
)

// BuildTitle renders the push notification title for a match.
func BuildTitle(m MatchedNotification) string {
	return fmt.Sprintf("📚 %s in %d minutes!", m.CourseID, m.LeadMinutes)
}

// BuildBody renders the push notification body: full course title, room,
// instructor, and start time, joined with bullets. Empty parts are dropped.
func BuildBody(m MatchedNotification) string {
	var parts []string
	if m.Slot.CourseTitle != "" && m.Slot.CourseTitle != m.CourseID {
		parts = append(parts, m.Slot.CourseTitle)
	}
	if m.Slot.Room != "" {
		parts = append(parts, "Room: "+m.Slot.Room)
	}
	if m.Slot.Instructor != "" {
		parts = append(parts, "Prof: "+m.Slot.Instructor)
	}
	parts = append(parts, "Starts at "+m.Slot.StartTime())
	return strings.Join(parts, " • ")
}

// BuildData renders the data payload the app uses for deep linking.
func BuildData(m MatchedNotification) map[string]string {
	return map[string]string{
		"type":      "class_reminder",
		"course":    m.CourseID,
		"startTime": m.Slot.StartTime(),
		"classroom": m.Slot.Room,
		"deep_link": "nextclass://home",
	}
}
