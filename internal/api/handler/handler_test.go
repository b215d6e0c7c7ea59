package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rahulmindslate/nextclass-notify/internal/api"
	"github.com/rahulmindslate/nextclass-notify/internal/config"
	"github.com/rahulmindslate/nextclass-notify/internal/directory"
	"github.com/rahulmindslate/nextclass-notify/internal/notify"
	"github.com/rahulmindslate/nextclass-notify/internal/otp"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeDB struct{ err error }

func (f *fakeDB) HealthCheck(context.Context) error { return f.err }

type fakeScheduler struct {
	status     notify.CycleStatus
	triggerErr error
	started    bool
	stopped    bool
	triggered  int
}

func (f *fakeScheduler) Start() { f.started = true }
func (f *fakeScheduler) Stop()  { f.stopped = true }
func (f *fakeScheduler) Trigger() error {
	f.triggered++
	return f.triggerErr
}
func (f *fakeScheduler) Status() notify.CycleStatus { return f.status }

type fakeUsers struct {
	prefs   map[string]directory.Preferences
	saveErr error
}

func (f *fakeUsers) UsersWithTokens(context.Context) ([]directory.UserProfile, error) {
	return nil, nil
}
func (f *fakeUsers) InvalidateToken(context.Context, string) error { return nil }
func (f *fakeUsers) Preferences(_ context.Context, uid string) (directory.Preferences, error) {
	p, ok := f.prefs[uid]
	if !ok {
		return directory.Preferences{}, directory.ErrNotFound
	}
	return p, nil
}
func (f *fakeUsers) UpdatePreferences(_ context.Context, uid string, p directory.Preferences) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.prefs[uid]; !ok {
		return directory.ErrNotFound
	}
	f.prefs[uid] = p
	return nil
}

type fakeOTP struct {
	sent      []string
	verifyErr error
}

func (f *fakeOTP) Send(_ context.Context, email string) error {
	f.sent = append(f.sent, email)
	return nil
}
func (f *fakeOTP) Verify(context.Context, string, string) error { return f.verifyErr }

type deps struct {
	db    *fakeDB
	sched *fakeScheduler
	users *fakeUsers
	otp   *fakeOTP
}

func newTestServer(t *testing.T) (*httptest.Server, *deps) {
	t.Helper()
	d := &deps{
		db:    &fakeDB{},
		sched: &fakeScheduler{},
		users: &fakeUsers{prefs: map[string]directory.Preferences{
			"u1": {Enabled: true, NotifyMinutesBefore: 10},
		}},
		otp: &fakeOTP{},
	}
	cfg := &config.Config{
		CORSAllowOrigins: []string{"*"},
		RateLimitEnabled: false,
	}
	srv := httptest.NewServer(api.NewRouter(d.db, d.sched, d.users, d.otp, cfg))
	t.Cleanup(srv.Close)
	return srv, d
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Health
// --------------------------------------------------------------------------

func TestHealthCheckDB(t *testing.T) {
	srv, d := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health/db", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	d.db.err = errors.New("connection refused")
	resp = doJSON(t, http.MethodGet, srv.URL+"/health/db", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

// --------------------------------------------------------------------------
// Scheduler control
// --------------------------------------------------------------------------

func TestNotificationLifecycleRoutes(t *testing.T) {
	srv, d := newTestServer(t)

	if resp := doJSON(t, http.MethodPost, srv.URL+"/api/notifications/start", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	if !d.sched.started {
		t.Error("start route did not reach the scheduler")
	}

	if resp := doJSON(t, http.MethodPost, srv.URL+"/api/notifications/stop", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d", resp.StatusCode)
	}
	if !d.sched.stopped {
		t.Error("stop route did not reach the scheduler")
	}

	if resp := doJSON(t, http.MethodPost, srv.URL+"/api/notifications/trigger", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("trigger status = %d", resp.StatusCode)
	}
	if d.sched.triggered != 1 {
		t.Errorf("triggered = %d, want 1", d.sched.triggered)
	}
}

func TestTriggerConflictWhenCycleInFlight(t *testing.T) {
	srv, d := newTestServer(t)
	d.sched.triggerErr = notify.ErrCycleInFlight

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/notifications/trigger", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error.Code != "CYCLE_IN_FLIGHT" {
		t.Errorf("error code = %q, want CYCLE_IN_FLIGHT", body.Error.Code)
	}
}

func TestNotificationStatus(t *testing.T) {
	srv, d := newTestServer(t)
	d.sched.status = notify.CycleStatus{Running: true, LastSentCount: 4}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/notifications/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got notify.CycleStatus
	decodeBody(t, resp, &got)
	if !got.Running || got.LastSentCount != 4 {
		t.Errorf("status body = %+v", got)
	}
}

// --------------------------------------------------------------------------
// Preferences
// --------------------------------------------------------------------------

func TestPreferencesRoundTrip(t *testing.T) {
	srv, d := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/notifications/preferences",
		`{"uid":"u1","notificationsEnabled":false,"notifyMinutesBefore":15}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	if got := d.users.prefs["u1"]; got.Enabled || got.NotifyMinutesBefore != 15 {
		t.Errorf("stored prefs = %+v", got)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/notifications/preferences?uid=u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var prefs directory.Preferences
	decodeBody(t, resp, &prefs)
	if prefs.NotifyMinutesBefore != 15 {
		t.Errorf("notifyMinutesBefore = %d, want 15", prefs.NotifyMinutesBefore)
	}
}

func TestPreferencesValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing uid", `{"notifyMinutesBefore":10}`, http.StatusBadRequest},
		{"lead too small", `{"uid":"u1","notifyMinutesBefore":0}`, http.StatusBadRequest},
		{"lead too large", `{"uid":"u1","notifyMinutesBefore":90}`, http.StatusBadRequest},
		{"unknown user", `{"uid":"ghost","notifyMinutesBefore":10}`, http.StatusNotFound},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/notifications/preferences", tc.body)
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/notifications/preferences", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("get without uid: status = %d, want 400", resp.StatusCode)
	}
}

// --------------------------------------------------------------------------
// OTP
// --------------------------------------------------------------------------

func TestOTPRoutes(t *testing.T) {
	srv, d := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/send-otp", `{"email":"u@example.com"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send-otp status = %d, want 200", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/resend-otp", `{"email":"u@example.com"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resend-otp status = %d, want 200", resp.StatusCode)
	}
	if len(d.otp.sent) != 2 {
		t.Errorf("sent %d codes, want 2", len(d.otp.sent))
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/send-otp", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("send-otp without email: status = %d, want 400", resp.StatusCode)
	}
}

func TestVerifyOTPStatusMapping(t *testing.T) {
	srv, d := newTestServer(t)
	body := `{"email":"u@example.com","otp":"1234"}`

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"wrong code", otp.ErrWrongCode, http.StatusUnauthorized},
		{"expired", otp.ErrExpired, http.StatusBadRequest},
		{"no code", otp.ErrNoCode, http.StatusBadRequest},
		{"locked", otp.ErrTooMany, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d.otp.verifyErr = tc.err
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/verify-otp", body)
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/verify-otp", `{"email":"u@example.com"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("verify without otp: status = %d, want 400", resp.StatusCode)
	}
}
