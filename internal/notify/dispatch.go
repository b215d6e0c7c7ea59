package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/rahulmindslate/nextclass-notify/internal/directory"
)

// Dispatcher fans a batch of matched notifications out to the push provider
// through a bounded worker pool. One outcome per input, in input order.
type Dispatcher struct {
	sender  Sender
	users   directory.Store
	workers int
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. ratePerSecond caps provider sends
// across all workers; 0 disables the cap.
func NewDispatcher(sender Sender, users directory.Store, workers, ratePerSecond int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond)
	}
	return &Dispatcher{
		sender:  sender,
		users:   users,
		workers: workers,
		limiter: limiter,
		logger:  logger,
	}
}

// Dispatch attempts delivery for every notification in the batch. A failing
// item never aborts the rest; outcomes land at their input index regardless
// of completion order. Invalid tokens are flagged in the directory so the
// same token stops failing every cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []MatchedNotification) []DispatchOutcome {
	outcomes := make([]DispatchOutcome, len(batch))
	if len(batch) == 0 {
		return outcomes
	}

	workers := d.workers
	if workers > len(batch) {
		workers = len(batch)
	}

	idx := make(chan int, len(batch))
	for i := range batch {
		idx <- i
	}
	close(idx)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				outcomes[i] = d.sendOne(ctx, batch[i])
			}
		}()
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, m MatchedNotification) DispatchOutcome {
	outcome := DispatchOutcome{Notification: m}

	if err := d.limiter.Wait(ctx); err != nil {
		outcome.Status = StatusTransient
		outcome.ErrorDetail = err.Error()
		return outcome
	}

	err := d.sender.Send(ctx, m.PushToken, BuildTitle(m), BuildBody(m), BuildData(m))
	switch {
	case err == nil:
		outcome.Status = StatusSent

	case errors.Is(err, ErrInvalidToken):
		outcome.Status = StatusInvalidToken
		outcome.ErrorDetail = err.Error()
		sendErrorsTotal.WithLabelValues("invalid_token").Inc()
		// Best effort: a failed flag just means one more failed send next cycle.
		if ierr := d.users.InvalidateToken(ctx, m.UserID); ierr != nil {
			d.logger.Warn("Token invalidation failed", "user_id", m.UserID, "error", ierr)
		} else {
			invalidTokensTotal.Inc()
			d.logger.Info("Token flagged inactive", "user_id", m.UserID)
		}

	default:
		outcome.Status = StatusTransient
		outcome.ErrorDetail = err.Error()
		sendErrorsTotal.WithLabelValues("transient").Inc()
		d.logger.Warn("Push send failed",
			"user_id", m.UserID, "course_id", m.CourseID, "error", err)
	}
	return outcome
}
