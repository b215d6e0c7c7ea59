package timetable

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store over Postgres prepared statements.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGStore creates a Postgres-backed timetable store.
func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) *PGStore {
	return &PGStore{pool: pool, logger: logger}
}

// SlotsFor returns all slots for an institution on the given weekday.
// Rows with unparseable start times are skipped and logged, never fatal.
func (s *PGStore) SlotsFor(ctx context.Context, institutionID string, weekday time.Weekday) ([]ClassSlot, error) {
	rows, err := s.pool.Query(ctx, "slots_for_weekday", institutionID, isoWeekday(weekday))
	if err != nil {
		return nil, fmt.Errorf("query slots for %s: %w", institutionID, err)
	}
	defer rows.Close()

	var slots []ClassSlot
	for rows.Next() {
		var (
			courseID, courseTitle, startRaw, room, instructor string
			wd                                                int
		)
		if err := rows.Scan(&courseID, &courseTitle, &wd, &startRaw, &room, &instructor); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}

		startMinutes, err := ParseStartTime(startRaw)
		if err != nil {
			s.logger.Warn("Skipping slot with bad start time",
				"institution_id", institutionID, "course_id", courseID, "start_time", startRaw)
			continue
		}

		slots = append(slots, ClassSlot{
			InstitutionID: institutionID,
			CourseID:      courseID,
			CourseTitle:   courseTitle,
			Weekday:       fromISOWeekday(wd),
			StartMinutes:  startMinutes,
			Room:          room,
			Instructor:    instructor,
		})
	}
	return slots, rows.Err()
}
