// Package lockout enforces password re-entry after an idle lock: capped
// attempts with exponential back-off, then forced logout. The existing session
// token stays valid throughout; a lock is a pause, not a sign-out.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// MaxAttempts is the failed-unlock cap; reaching it forces a full logout.
const MaxAttempts = 5

// Sentinel errors. UnlockFunc implementations must return an error wrapping
// ErrInvalidCredentials for credential failures so the controller can
// distinguish them from transport errors, which pass through verbatim.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMaxAttempts        = errors.New("maximum unlock attempts reached")
)

// CredentialError reports a failed unlock below the attempt cap.
type CredentialError struct {
	// AttemptsRemaining is how many attempts are left before forced logout.
	AttemptsRemaining int
	// Cooldown is the back-off delay before the next attempt is accepted.
	Cooldown time.Duration
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("incorrect password, %d attempts remaining", e.AttemptsRemaining)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidCredentials).
func (e *CredentialError) Unwrap() error { return ErrInvalidCredentials }

// CooldownError reports a submit refused because back-off is still running.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("unlock cooling down, retry in %s", e.Remaining.Round(time.Second))
}

// Backoff returns the cooldown after the nth failed attempt (1-based):
// round(2000ms × 1.5^(n−1) / 1000) seconds, i.e. 2s, 3s, 5s, 7s.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	ms := 2000 * math.Pow(1.5, float64(attempt-1))
	return time.Duration(math.Round(ms/1000)) * time.Second
}

// UnlockFunc re-verifies the password against the backend. It must wrap
// ErrInvalidCredentials for wrong-password results.
type UnlockFunc func(ctx context.Context, password string) error

// Controller runs the capped-attempt unlock flow. Attempt state resets only on
// successful unlock or full logout, never on cooldown expiry alone.
type Controller struct {
	mu            sync.Mutex
	unlock        UnlockFunc
	onFullLogout  func()
	maxAttempts   int
	attempts      int
	cooldownUntil time.Time
	nowF          func() time.Time
}

// NewController returns a Controller calling unlock to verify passwords and
// onFullLogout when the attempt cap is reached.
func NewController(unlock UnlockFunc, onFullLogout func()) *Controller {
	return &Controller{
		unlock:       unlock,
		onFullLogout: onFullLogout,
		maxAttempts:  MaxAttempts,
		nowF:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit attempts an unlock with the given password.
//
// Returns nil on success (attempt state cleared; overlay dismissal is the
// caller's responsibility), a CooldownError while back-off is running, a
// CredentialError on a wrong password below the cap, ErrMaxAttempts once the
// cap is reached (onFullLogout has then been invoked and no further attempt is
// possible), or the verbatim error for non-credential failures.
func (c *Controller) Submit(ctx context.Context, password string) error {
	c.mu.Lock()
	if c.attempts >= c.maxAttempts {
		c.mu.Unlock()
		return ErrMaxAttempts
	}
	if remaining := c.cooldownUntil.Sub(c.nowF()); remaining > 0 {
		c.mu.Unlock()
		return &CooldownError{Remaining: remaining}
	}
	unlock := c.unlock
	c.mu.Unlock()

	err := unlock(ctx, password)
	if err == nil {
		c.Reset()
		return nil
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		// Network and server errors are surfaced verbatim and do not
		// consume an attempt.
		return err
	}

	c.mu.Lock()
	c.attempts++
	if c.attempts >= c.maxAttempts {
		onFullLogout := c.onFullLogout
		c.mu.Unlock()
		if onFullLogout != nil {
			onFullLogout()
		}
		return ErrMaxAttempts
	}
	cooldown := Backoff(c.attempts)
	c.cooldownUntil = c.nowF().Add(cooldown)
	remaining := c.maxAttempts - c.attempts
	c.mu.Unlock()
	return &CredentialError{AttemptsRemaining: remaining, Cooldown: cooldown}
}

// Reset clears attempt and cooldown state. Called internally on success; also
// used by the session controller after a full logout.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = 0
	c.cooldownUntil = time.Time{}
}

// Attempts returns the failed-attempt count.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// CooldownRemaining returns how long until the next attempt is accepted, or
// zero when no cooldown is running.
func (c *Controller) CooldownRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remaining := c.cooldownUntil.Sub(c.nowF()); remaining > 0 {
		return remaining
	}
	return 0
}
