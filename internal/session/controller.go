// Package session composes the lock protocol: the idle machine engages the
// lock, the lockout controller drives password re-verification against the
// backend, and trust records follow the session lifecycle (persisted on strong
// auth, revoked on full logout only, never on an idle lock).
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"telehealth-call-plane/agent/internal/api"
	"telehealth-call-plane/agent/internal/bus"
	"telehealth-call-plane/agent/internal/idle"
	"telehealth-call-plane/agent/internal/lockout"
)

// Events published on the bus.
const (
	// EventWarning carries the remaining time.Duration of the idle countdown.
	EventWarning = "session.warning"
	// EventLocked fires when the idle budget is exhausted.
	EventLocked = "session.locked"
	// EventUnlocked fires after a successful password re-verify.
	EventUnlocked = "session.unlocked"
	// EventLoggedOut fires after a forced or explicit full logout.
	EventLoggedOut = "session.logged-out"
)

// ErrNotLocked is returned by Unlock when no lock is engaged.
var ErrNotLocked = errors.New("session: not locked")

// Verifier is the subset of the API client the controller needs.
type Verifier interface {
	VerifyPassword(ctx context.Context, password string) error
	Logout(ctx context.Context) error
}

// TrustStore is the subset of the trust store the controller needs.
type TrustStore interface {
	Store(ctx context.Context, email string)
	RevokeAll(ctx context.Context)
}

// Config holds session controller dependencies and idle settings.
type Config struct {
	Verifier    Verifier
	Trust       TrustStore
	Events      *bus.Bus
	IdleBudget  time.Duration
	WarningLead time.Duration
}

// Controller runs the per-session lock protocol.
type Controller struct {
	verifier Verifier
	trust    TrustStore
	events   *bus.Bus
	idler    *idle.Machine
	lock     *lockout.Controller

	mu     sync.Mutex
	locked bool
}

// NewController wires the idle machine and lockout controller together.
func NewController(cfg Config) (*Controller, error) {
	c := &Controller{
		verifier: cfg.Verifier,
		trust:    cfg.Trust,
		events:   cfg.Events,
	}
	idler, err := idle.NewMachine(idle.Config{
		IdleBudget:  cfg.IdleBudget,
		WarningLead: cfg.WarningLead,
		OnWarning: func(remaining time.Duration) {
			c.events.Publish(EventWarning, remaining)
		},
		OnIdle: c.engageLock,
	})
	if err != nil {
		return nil, err
	}
	c.idler = idler
	c.lock = lockout.NewController(c.verify, c.ForceLogout)
	return c, nil
}

// Start begins idle tracking.
func (c *Controller) Start() { c.idler.Start() }

// Stop cancels idle tracking; no callback fires afterwards.
func (c *Controller) Stop() { c.idler.Stop() }

// Touch forwards qualifying user activity to the idle machine.
func (c *Controller) Touch() { c.idler.Touch() }

// Extend is the explicit "Continue" affirmation during the idle warning.
func (c *Controller) Extend() { c.idler.Extend() }

// Locked reports whether the lock overlay is engaged.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Attempts returns the failed-unlock count for the current lock.
func (c *Controller) Attempts() int { return c.lock.Attempts() }

// CooldownRemaining returns the running unlock back-off, if any.
func (c *Controller) CooldownRemaining() time.Duration { return c.lock.CooldownRemaining() }

// Unlock re-verifies the password. On success the lock disengages, attempt
// state clears, and idle tracking restarts. Failure semantics are the lockout
// controller's: CooldownError, CredentialError, ErrMaxAttempts (forced logout
// already performed), or the verbatim transport error.
func (c *Controller) Unlock(ctx context.Context, password string) error {
	c.mu.Lock()
	if !c.locked {
		c.mu.Unlock()
		return ErrNotLocked
	}
	c.mu.Unlock()
	if err := c.lock.Submit(ctx, password); err != nil {
		return err
	}
	c.mu.Lock()
	c.locked = false
	c.mu.Unlock()
	c.idler.Start()
	c.events.Publish(EventUnlocked, nil)
	return nil
}

// MarkVerified persists a trust record for email after a completed strong-auth
// (two-factor) challenge, so this device can skip the next one.
func (c *Controller) MarkVerified(ctx context.Context, email string) {
	c.trust.Store(ctx, email)
}

// ForceLogout signs the session out entirely: backend logout (best effort),
// every trust record revoked, attempt state cleared, idle tracking stopped.
func (c *Controller) ForceLogout() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.verifier.Logout(ctx); err != nil {
		log.Printf("session: backend logout failed: %v", err)
	}
	c.trust.RevokeAll(ctx)
	c.lock.Reset()
	c.idler.Stop()
	c.mu.Lock()
	c.locked = false
	c.mu.Unlock()
	c.events.Publish(EventLoggedOut, nil)
}

// engageLock fires once when the idle machine reaches LOCKED.
func (c *Controller) engageLock() {
	c.mu.Lock()
	c.locked = true
	c.mu.Unlock()
	c.events.Publish(EventLocked, nil)
}

// verify adapts the backend password check to the lockout controller's
// credential-failure contract.
func (c *Controller) verify(ctx context.Context, password string) error {
	err := c.verifier.VerifyPassword(ctx, password)
	if errors.Is(err, api.ErrInvalidCredentials) {
		return lockout.ErrInvalidCredentials
	}
	return err
}
