package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telehealth-call-plane/agent/internal/api"
	"telehealth-call-plane/agent/internal/bus"
	"telehealth-call-plane/agent/internal/lockout"
)

type fakeVerifier struct {
	mu       sync.Mutex
	password string
	verifies int
	logouts  int
	err      error
}

func (f *fakeVerifier) VerifyPassword(ctx context.Context, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies++
	if f.err != nil {
		return f.err
	}
	if password != f.password {
		return api.ErrInvalidCredentials
	}
	return nil
}

func (f *fakeVerifier) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

func (f *fakeVerifier) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

type fakeTrust struct {
	mu      sync.Mutex
	stored  []string
	revoked bool
}

func (f *fakeTrust) Store(ctx context.Context, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, email)
}

func (f *fakeTrust) RevokeAll(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = true
}

func (f *fakeTrust) wasRevoked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked
}

func newTestController(t *testing.T, verifier *fakeVerifier, trust *fakeTrust, events *bus.Bus) *Controller {
	t.Helper()
	c, err := NewController(Config{
		Verifier:    verifier,
		Trust:       trust,
		Events:      events,
		IdleBudget:  80 * time.Millisecond,
		WarningLead: 40 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestController_IdleExpiryEngagesLock(t *testing.T) {
	events := bus.New()
	locked := make(chan struct{}, 1)
	events.Subscribe(EventLocked, func(any) { locked <- struct{}{} })
	c := newTestController(t, &fakeVerifier{password: "pw"}, &fakeTrust{}, events)

	c.Start()
	select {
	case <-locked:
	case <-time.After(time.Second):
		t.Fatal("lock never engaged after idle expiry")
	}
	if !c.Locked() {
		t.Error("Locked() = false after idle expiry")
	}
}

func TestController_UnlockWithoutLockFails(t *testing.T) {
	c := newTestController(t, &fakeVerifier{password: "pw"}, &fakeTrust{}, bus.New())

	if err := c.Unlock(context.Background(), "pw"); !errors.Is(err, ErrNotLocked) {
		t.Errorf("err = %v, want ErrNotLocked", err)
	}
}

func TestController_WrongPasswordIsCredentialFailure(t *testing.T) {
	c := newTestController(t, &fakeVerifier{password: "pw"}, &fakeTrust{}, bus.New())
	c.engageLock()

	err := c.Unlock(context.Background(), "nope")
	var cred *lockout.CredentialError
	if !errors.As(err, &cred) {
		t.Fatalf("err = %v, want CredentialError", err)
	}
	if cred.AttemptsRemaining != 4 {
		t.Errorf("AttemptsRemaining = %d, want 4", cred.AttemptsRemaining)
	}
	if !c.Locked() {
		t.Error("lock must stay engaged after a failed unlock")
	}
}

func TestController_TransportErrorDoesNotConsumeAttempt(t *testing.T) {
	verifier := &fakeVerifier{password: "pw", err: errors.New("gateway timeout")}
	c := newTestController(t, verifier, &fakeTrust{}, bus.New())
	c.engageLock()

	err := c.Unlock(context.Background(), "pw")
	if err == nil || errors.Is(err, lockout.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want verbatim transport error", err)
	}
	if got := c.Attempts(); got != 0 {
		t.Errorf("attempts = %d, want 0", got)
	}
}

func TestController_SuccessfulUnlockDisengagesAndRestartsIdle(t *testing.T) {
	events := bus.New()
	unlocked := make(chan struct{}, 1)
	events.Subscribe(EventUnlocked, func(any) { unlocked <- struct{}{} })
	c := newTestController(t, &fakeVerifier{password: "pw"}, &fakeTrust{}, events)
	c.engageLock()

	if err := c.Unlock(context.Background(), "pw"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if c.Locked() {
		t.Error("Locked() = true after successful unlock")
	}
	select {
	case <-unlocked:
	default:
		t.Error("EventUnlocked not published")
	}
	if got := c.Attempts(); got != 0 {
		t.Errorf("attempts = %d after success, want 0", got)
	}
}

func TestController_ForceLogoutRevokesTrustAndLogsOut(t *testing.T) {
	events := bus.New()
	loggedOut := make(chan struct{}, 1)
	events.Subscribe(EventLoggedOut, func(any) { loggedOut <- struct{}{} })
	verifier := &fakeVerifier{password: "pw"}
	trust := &fakeTrust{}
	c := newTestController(t, verifier, trust, events)
	c.engageLock()

	c.ForceLogout()

	if verifier.logoutCount() != 1 {
		t.Errorf("backend logout called %d times, want 1", verifier.logoutCount())
	}
	if !trust.wasRevoked() {
		t.Error("full logout must revoke all trust records")
	}
	if c.Locked() {
		t.Error("lock state should clear on full logout")
	}
	select {
	case <-loggedOut:
	default:
		t.Error("EventLoggedOut not published")
	}
}

func TestController_MarkVerifiedStoresTrustRecord(t *testing.T) {
	trust := &fakeTrust{}
	c := newTestController(t, &fakeVerifier{password: "pw"}, trust, bus.New())

	c.MarkVerified(context.Background(), "user@example.com")

	trust.mu.Lock()
	defer trust.mu.Unlock()
	if len(trust.stored) != 1 || trust.stored[0] != "user@example.com" {
		t.Errorf("stored = %v, want [user@example.com]", trust.stored)
	}
}

func TestController_IdleLockDoesNotTouchTrust(t *testing.T) {
	events := bus.New()
	locked := make(chan struct{}, 1)
	events.Subscribe(EventLocked, func(any) { locked <- struct{}{} })
	trust := &fakeTrust{}
	c := newTestController(t, &fakeVerifier{password: "pw"}, trust, events)

	c.Start()
	select {
	case <-locked:
	case <-time.After(time.Second):
		t.Fatal("lock never engaged")
	}
	if trust.wasRevoked() {
		t.Error("an idle lock is a pause, not a sign-out: trust must survive")
	}
}
