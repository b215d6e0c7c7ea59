package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseStartTime parses an HH:MM wall-clock string into minutes since
// midnight. Timetables store times like "02:15" meaning 14:15 — college
// classes run roughly 8 AM to 6 PM, so an hour below 8 is treated as PM.
func ParseStartTime(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid start time %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hours < 8 {
		hours += 12
	}
	return hours*60 + minutes, nil
}

// FormatMinutes renders minutes since midnight as HH:MM.
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	mins %= 24 * 60
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// isoWeekday converts time.Weekday (Sunday=0) to the 1=Monday..7=Sunday
// convention the timetable tables use.
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// fromISOWeekday is the inverse of isoWeekday.
func fromISOWeekday(n int) time.Weekday {
	if n == 7 {
		return time.Sunday
	}
	return time.Weekday(n)
}
