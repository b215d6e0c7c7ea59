// Package otp implements the email verification codes the mobile app uses
// at sign-in: generate, deliver by email, verify with expiry and a bounded
// attempt count. Codes live in process memory only.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	CodeLength    = 4
	TTL           = 10 * time.Minute
	MaxAttempts   = 3
	evictInterval = time.Minute
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrNoCode       = errors.New("no code found, request a new one")
	ErrExpired      = errors.New("code has expired, request a new one")
	ErrTooMany      = errors.New("too many failed attempts, request a new code")
	ErrWrongCode    = errors.New("wrong code")
)

// Mailer delivers a verification code to an email address.
type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// --------------------------------------------------------------------------
// Service
// --------------------------------------------------------------------------

type pending struct {
	code      string
	createdAt time.Time
	attempts  int
}

// Service issues and verifies codes. Thread-safe.
type Service struct {
	mailer Mailer
	now    func() time.Time

	mu    sync.Mutex
	codes map[string]*pending // keyed by lowercased email
}

// NewService creates the OTP service and starts a background eviction loop
// that drops expired codes. The loop stops when ctx is cancelled.
func NewService(ctx context.Context, mailer Mailer) *Service {
	s := &Service{
		mailer: mailer,
		now:    time.Now,
		codes:  make(map[string]*pending),
	}
	go s.evictLoop(ctx)
	return s
}

// Send generates a fresh code for the email and delivers it. A previous
// unexpired code for the same email is replaced — this is also the resend
// path.
func (s *Service) Send(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	if err := s.mailer.SendCode(ctx, email, code); err != nil {
		return fmt.Errorf("send code email: %w", err)
	}

	s.mu.Lock()
	s.codes[email] = &pending{code: code, createdAt: s.now()}
	s.mu.Unlock()
	return nil
}

// Verify checks a submitted code. On success the code is consumed; a wrong
// code burns one attempt, and the code is dropped after MaxAttempts
// failures or past its TTL.
func (s *Service) Verify(_ context.Context, email, code string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrWrongCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.codes[email]
	if !ok {
		return ErrNoCode
	}
	if s.now().After(p.createdAt.Add(TTL)) {
		delete(s.codes, email)
		return ErrExpired
	}
	if p.attempts >= MaxAttempts {
		delete(s.codes, email)
		return ErrTooMany
	}
	if p.code != code {
		p.attempts++
		if p.attempts >= MaxAttempts {
			delete(s.codes, email)
			return ErrTooMany
		}
		return fmt.Errorf("%w: %d attempts remaining", ErrWrongCode, MaxAttempts-p.attempts)
	}

	delete(s.codes, email)
	return nil
}

func (s *Service) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.now().Add(-TTL)
			s.mu.Lock()
			for email, p := range s.codes {
				if p.createdAt.Before(cutoff) {
					delete(s.codes, email)
				}
			}
			s.mu.Unlock()
		}
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func generateCode() (string, error) {
	var b strings.Builder
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
