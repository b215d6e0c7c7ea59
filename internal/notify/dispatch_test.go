package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rahulmindslate/nextclass-notify/internal/directory"
)

// fakeSender fails for tokens listed in failWith, succeeds otherwise.
type fakeSender struct {
	mu       sync.Mutex
	failWith map[string]error
	sent     []string // tokens in send order
}

func (f *fakeSender) Send(_ context.Context, token, _, _ string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failWith[token]; ok {
		return err
	}
	f.sent = append(f.sent, token)
	return nil
}

// fakeDirectory records invalidations; UsersWithTokens optionally blocks on
// release to hold a cycle in flight.
type fakeDirectory struct {
	mu          sync.Mutex
	users       []directory.UserProfile
	err         error
	invalidated []string
	calls       int
	entered     chan struct{} // closed-ish signal per call, may be nil
	release     chan struct{} // blocks UsersWithTokens until closed, may be nil
}

func (f *fakeDirectory) UsersWithTokens(ctx context.Context) ([]directory.UserProfile, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

func (f *fakeDirectory) InvalidateToken(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
	return nil
}

func (f *fakeDirectory) Preferences(context.Context, string) (directory.Preferences, error) {
	return directory.Preferences{}, directory.ErrNotFound
}

func (f *fakeDirectory) UpdatePreferences(context.Context, string, directory.Preferences) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func matchFor(userID, token, course string) MatchedNotification {
	return MatchedNotification{
		UserID:      userID,
		PushToken:   token,
		CourseID:    course,
		StartsAt:    time.Date(2025, time.September, 1, 10, 0, 0, 0, time.UTC),
		LeadMinutes: 10,
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	sender := &fakeSender{failWith: map[string]error{
		"tok-2": fmt.Errorf("%w: unregistered", ErrInvalidToken),
	}}
	dir := &fakeDirectory{}
	d := NewDispatcher(sender, dir, 1, 0, testLogger())

	batch := []MatchedNotification{
		matchFor("u1", "tok-1", "CS201"),
		matchFor("u2", "tok-2", "CS201"),
		matchFor("u3", "tok-3", "CS201"),
	}
	outcomes := d.Dispatch(context.Background(), batch)

	if len(outcomes) != 3 {
		t.Fatalf("want 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Status != StatusSent || outcomes[2].Status != StatusSent {
		t.Errorf("first and third should be sent: %v, %v", outcomes[0].Status, outcomes[2].Status)
	}
	if outcomes[1].Status != StatusInvalidToken {
		t.Errorf("second should be invalid token, got %v", outcomes[1].Status)
	}
	if len(dir.invalidated) != 1 || dir.invalidated[0] != "u2" {
		t.Errorf("only u2's token should be invalidated, got %v", dir.invalidated)
	}
	if len(sender.sent) != 2 {
		t.Errorf("want 2 successful sends, got %d", len(sender.sent))
	}
}

func TestDispatchTransientFailure(t *testing.T) {
	sender := &fakeSender{failWith: map[string]error{
		"tok-1": errors.New("fcm: unavailable"),
	}}
	dir := &fakeDirectory{}
	d := NewDispatcher(sender, dir, 4, 0, testLogger())

	outcomes := d.Dispatch(context.Background(), []MatchedNotification{
		matchFor("u1", "tok-1", "CS201"),
	})
	if outcomes[0].Status != StatusTransient {
		t.Fatalf("want transient, got %v", outcomes[0].Status)
	}
	if len(dir.invalidated) != 0 {
		t.Errorf("transient failure must not invalidate tokens: %v", dir.invalidated)
	}
	if outcomes[0].ErrorDetail == "" {
		t.Error("transient outcome should carry error detail")
	}
}

func TestDispatchOutcomeOrderUnderConcurrency(t *testing.T) {
	sender := &fakeSender{}
	dir := &fakeDirectory{}
	d := NewDispatcher(sender, dir, 8, 0, testLogger())

	batch := make([]MatchedNotification, 50)
	for i := range batch {
		batch[i] = matchFor(fmt.Sprintf("u%d", i), fmt.Sprintf("tok-%d", i), "CS201")
	}
	outcomes := d.Dispatch(context.Background(), batch)

	if len(outcomes) != len(batch) {
		t.Fatalf("want %d outcomes, got %d", len(batch), len(outcomes))
	}
	for i, o := range outcomes {
		if o.Notification.UserID != batch[i].UserID {
			t.Fatalf("outcome %d re-associated wrongly: got %s want %s",
				i, o.Notification.UserID, batch[i].UserID)
		}
		if o.Status != StatusSent {
			t.Errorf("outcome %d: want sent, got %v", i, o.Status)
		}
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, &fakeDirectory{}, 4, 0, testLogger())
	if got := d.Dispatch(context.Background(), nil); len(got) != 0 {
		t.Fatalf("want 0 outcomes for empty batch, got %d", len(got))
	}
}
