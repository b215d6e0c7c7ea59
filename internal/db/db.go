// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rahulmindslate/nextclass-notify/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the timetable and
// directory stores use. Prepared statements eliminate parse overhead on the
// per-minute matching cycle.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Timetable: weekly slots for one institution and weekday (1=Mon..7=Sun)
		"slots_for_weekday": `
			SELECT s.course_id, COALESCE(ci.full_title, s.course_id),
			       s.weekday, s.start_time, COALESCE(s.room, ''),
			       COALESCE(ci.instructor, '')
			FROM class_slots s
			LEFT JOIN course_info ci
			  ON ci.institution_id = s.institution_id AND ci.course_id = s.course_id
			WHERE s.institution_id = $1 AND s.weekday = $2`,

		// Directory: users eligible for push delivery
		"users_with_tokens": `
			SELECT u.id, COALESCE(u.name, 'Student'), u.institution_id,
			       u.push_token, u.push_token_updated_at,
			       u.notify_minutes_before,
			       COALESCE(array_agg(c.course_id) FILTER (WHERE c.course_id IS NOT NULL), '{}')
			FROM users u
			LEFT JOIN user_courses c ON c.user_id = u.id
			WHERE u.push_token <> ''
			  AND u.push_token_active
			  AND u.notifications_enabled
			GROUP BY u.id`,

		// Directory: token invalidation and preferences
		"invalidate_token": `
			UPDATE users SET push_token_active = false, updated_at = NOW()
			WHERE id = $1`,
		"get_preferences": `
			SELECT notifications_enabled, notify_minutes_before
			FROM users WHERE id = $1`,
		"update_preferences": `
			UPDATE users
			SET notifications_enabled = $2, notify_minutes_before = $3, updated_at = NOW()
			WHERE id = $1`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
