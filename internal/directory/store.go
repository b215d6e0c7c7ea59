package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a user id does not exist.
var ErrNotFound = errors.New("user not found")

// PGStore implements Store over Postgres prepared statements.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed directory store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// UsersWithTokens returns push-eligible users. Users whose selected course
// set is empty are filtered out here — they can never match a slot.
func (s *PGStore) UsersWithTokens(ctx context.Context) ([]UserProfile, error) {
	rows, err := s.pool.Query(ctx, "users_with_tokens")
	if err != nil {
		return nil, fmt.Errorf("query users with tokens: %w", err)
	}
	defer rows.Close()

	var users []UserProfile
	for rows.Next() {
		var (
			u         UserProfile
			updatedAt *time.Time
		)
		if err := rows.Scan(
			&u.UserID, &u.Name, &u.InstitutionID,
			&u.PushToken, &updatedAt, &u.NotifyMinutesBefore,
			&u.SelectedCourses,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if len(u.SelectedCourses) == 0 {
			continue
		}
		u.TokenUpdatedAt = updatedAt
		users = append(users, u)
	}
	return users, rows.Err()
}

// InvalidateToken flags the user's token inactive (not deleted) so a single
// unregistered token stops failing every cycle without losing the record.
func (s *PGStore) InvalidateToken(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, "invalidate_token", userID)
	if err != nil {
		return fmt.Errorf("invalidate token for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Preferences returns the user's notification settings.
func (s *PGStore) Preferences(ctx context.Context, userID string) (Preferences, error) {
	var p Preferences
	err := s.pool.QueryRow(ctx, "get_preferences", userID).
		Scan(&p.Enabled, &p.NotifyMinutesBefore)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("get preferences for %s: %w", userID, err)
	}
	return p, nil
}

// UpdatePreferences stores the user's notification settings.
func (s *PGStore) UpdatePreferences(ctx context.Context, userID string, p Preferences) error {
	tag, err := s.pool.Exec(ctx, "update_preferences", userID, p.Enabled, p.NotifyMinutesBefore)
	if err != nil {
		return fmt.Errorf("update preferences for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
