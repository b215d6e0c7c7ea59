// Package directory is the read-mostly source of app users eligible for push
// delivery: their device token, selected courses, and notification
// preferences. The only write paths are token invalidation and preference
// updates.
package directory

import (
	"context"
	"time"
)

// UserProfile is one app user as seen by the notification engine.
type UserProfile struct {
	UserID              string
	Name                string
	InstitutionID       string
	SelectedCourses     []string
	PushToken           string
	TokenUpdatedAt      *time.Time
	NotifyMinutesBefore int // 1..60; 0 means "use the configured default"
}

// HasCourse reports whether the user selected the given course.
func (u UserProfile) HasCourse(courseID string) bool {
	for _, c := range u.SelectedCourses {
		if c == courseID {
			return true
		}
	}
	return false
}

// Preferences are the user-tunable notification settings.
type Preferences struct {
	Enabled             bool `json:"notificationsEnabled"`
	NotifyMinutesBefore int  `json:"notifyMinutesBefore"`
}

// Store provides directory lookups and the two write paths the engine needs.
type Store interface {
	// UsersWithTokens returns users with an active push token, notifications
	// enabled, and at least one selected course.
	UsersWithTokens(ctx context.Context) ([]UserProfile, error)
	// InvalidateToken flags a user's push token inactive. The user drops out
	// of UsersWithTokens until the app registers a fresh token.
	InvalidateToken(ctx context.Context, userID string) error

	Preferences(ctx context.Context, userID string) (Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, p Preferences) error
}
