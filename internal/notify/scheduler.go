package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rahulmindslate/nextclass-notify/internal/directory"
	"github.com/rahulmindslate/nextclass-notify/internal/timetable"
)

// Scheduler drives the matching+dispatch cycle on a fixed cadence and
// exposes the start/stop/status/trigger control surface. At most one cycle
// executes at any instant, whether ticked or triggered.
type Scheduler struct {
	users      directory.Store
	slots      timetable.Store
	ledger     SentLedger
	dispatcher *Dispatcher
	opts       MatchOptions
	interval   time.Duration
	logger     *slog.Logger

	now func() time.Time // injectable clock

	mu      sync.Mutex // guards the loop lifecycle below
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	cycleMu sync.Mutex // in-flight guard shared by tick and Trigger

	statusMu sync.RWMutex
	status   CycleStatus
}

// NewScheduler wires the engine together. The loop is created stopped;
// call Start to begin periodic cycles.
func NewScheduler(
	users directory.Store,
	slots timetable.Store,
	ledger SentLedger,
	dispatcher *Dispatcher,
	opts MatchOptions,
	interval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		users:      users,
		slots:      slots,
		ledger:     ledger,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Start transitions the loop to Running and begins periodic cycles.
// Idempotent: starting an already-running loop is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.loop(ctx, s.done)
	s.logger.Info("Notification scheduler started", "interval", s.interval)
}

// Stop cancels future ticks. A cycle already in flight runs to completion —
// its sends are not interrupted. The status snapshot resets to zero.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.statusMu.Lock()
	s.status = CycleStatus{}
	s.statusMu.Unlock()

	s.logger.Info("Notification scheduler stopped")
}

// Trigger executes exactly one cycle immediately, independent of the
// Running state and of the periodic timer. Returns ErrCycleInFlight if a
// cycle is currently executing.
func (s *Scheduler) Trigger() error {
	return s.runCycle()
}

// Status returns the last published cycle snapshot plus the current
// Running state. Never blocks on an in-flight cycle.
func (s *Scheduler) Status() CycleStatus {
	s.statusMu.RLock()
	st := s.status
	s.statusMu.RUnlock()
	st.Running = s.running.Load()
	return st
}

// loop ticks until its context is cancelled. The first cycle fires one
// interval after Start, matching the periodic cadence exactly.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runCycle(); err != nil {
				// Only a manual trigger can be holding the guard.
				s.logger.Warn("Tick skipped", "error", err)
			}
		}
	}
}

// runCycle performs one matching+dispatch cycle under the in-flight guard.
// It uses its own bounded context rather than the loop's so that Stop never
// interrupts sends already underway.
func (s *Scheduler) runCycle() error {
	if !s.cycleMu.TryLock() {
		return ErrCycleInFlight
	}
	defer s.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	start := s.now()
	cycleID := uuid.NewString()
	errCount := 0

	users, err := s.users.UsersWithTokens(ctx)
	if err != nil {
		s.logger.Error("User directory unavailable", "cycle_id", cycleID, "error", err)
		errCount++
		users = nil
	}

	matches, matchErrs := Match(ctx, start, users, s.slots, s.opts)
	for _, merr := range matchErrs {
		s.logger.Error("Timetable lookup failed", "cycle_id", cycleID, "error", merr)
	}
	errCount += len(matchErrs)

	// Drop anything the ledger already saw; ledger errors fail open.
	fresh := make([]MatchedNotification, 0, len(matches))
	skipped := 0
	for _, m := range matches {
		seen, lerr := s.ledger.Seen(ctx, m.DedupKey())
		if lerr != nil {
			s.logger.Warn("Ledger read failed", "cycle_id", cycleID, "error", lerr)
			errCount++
			seen = false
		}
		if seen {
			skipped++
			continue
		}
		fresh = append(fresh, m)
	}

	outcomes := s.dispatcher.Dispatch(ctx, fresh)

	sent := 0
	for _, o := range outcomes {
		switch o.Status {
		case StatusSent:
			sent++
			if lerr := s.ledger.Mark(ctx, o.Notification.DedupKey()); lerr != nil {
				s.logger.Warn("Ledger write failed", "cycle_id", cycleID, "error", lerr)
				errCount++
			}
		default:
			errCount++
		}
	}

	duration := s.now().Sub(start)

	cyclesTotal.Inc()
	cycleDuration.Observe(duration.Seconds())
	matchesTotal.Add(float64(len(matches)))
	sentTotal.Add(float64(sent))
	cycleErrorsTotal.Add(float64(errCount))

	s.statusMu.Lock()
	s.status = CycleStatus{
		LastCycleID:     cycleID,
		LastRunAt:       start,
		LastRunDuration: duration.Milliseconds(),
		LastMatchCount:  len(matches),
		LastSentCount:   sent,
		LastErrorCount:  errCount,
	}
	s.statusMu.Unlock()

	s.logger.Info("Cycle complete",
		"cycle_id", cycleID,
		"users", len(users),
		"matched", len(matches),
		"deduped", skipped,
		"sent", sent,
		"errors", errCount,
		"duration", duration.Round(time.Millisecond))
	return nil
}
