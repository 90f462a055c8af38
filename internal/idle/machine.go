// Package idle tracks user inactivity as an explicit finite-state machine:
// ACTIVE → WARNING → LOCKED, with a reset edge back to ACTIVE. The lock
// protocol hangs off the LOCKED transition.
package idle

import (
	"errors"
	"sync"
	"time"
)

// Default idle configuration: a session may be inactive for 15 minutes total,
// with a 60-second warning countdown before the lock fires.
const (
	DefaultIdleBudget  = 15 * time.Minute
	DefaultWarningLead = 60 * time.Second
)

// Phase is the machine's current state.
type Phase int

const (
	// PhaseActive means qualifying activity has been seen recently.
	PhaseActive Phase = iota
	// PhaseWarning means the warning countdown is running; only Extend
	// returns the machine to PhaseActive.
	PhaseWarning
	// PhaseLocked is terminal: the OnIdle callback has fired.
	PhaseLocked
)

// String returns the phase name for logs.
func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "ACTIVE"
	case PhaseWarning:
		return "WARNING"
	case PhaseLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

type event int

const (
	eventTouch event = iota
	eventExtend
	eventWarnExpired
	eventLockExpired
)

// transition is the pure FSM core. Passive activity (eventTouch) is ignored in
// WARNING so a stray pointer twitch cannot silently grant more time; only an
// explicit Extend resets the countdown. LOCKED is terminal.
func transition(p Phase, ev event) Phase {
	switch p {
	case PhaseActive:
		switch ev {
		case eventWarnExpired:
			return PhaseWarning
		default:
			return PhaseActive
		}
	case PhaseWarning:
		switch ev {
		case eventExtend:
			return PhaseActive
		case eventLockExpired:
			return PhaseLocked
		default:
			return PhaseWarning
		}
	default:
		return PhaseLocked
	}
}

// Config holds idle machine settings and callbacks.
type Config struct {
	// IdleBudget is the total allowed inactivity before lock (default 15m).
	IdleBudget time.Duration
	// WarningLead is the countdown length before the budget expires (default 60s).
	WarningLead time.Duration
	// OnWarning is called on entering WARNING with the countdown remaining.
	OnWarning func(remaining time.Duration)
	// OnIdle is called exactly once on entering LOCKED.
	OnIdle func()
}

// Machine drives the idle FSM with real timers. All timer reconfiguration is
// atomic: pending timers are invalidated before new ones are armed, so a
// transition can never fire twice. Safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	cfg     Config
	phase   Phase
	enabled bool
	stopped bool
	// gen invalidates in-flight timers: a timer callback whose captured
	// generation no longer matches is a no-op.
	gen       uint64
	warnTimer *time.Timer
	lockTimer *time.Timer
	idleFired bool
}

// NewMachine returns a stopped Machine with defaults applied. Call Start to
// begin tracking.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.IdleBudget <= 0 {
		cfg.IdleBudget = DefaultIdleBudget
	}
	if cfg.WarningLead <= 0 {
		cfg.WarningLead = DefaultWarningLead
	}
	if cfg.WarningLead >= cfg.IdleBudget {
		return nil, errors.New("idle: warning lead must be shorter than the idle budget")
	}
	return &Machine{cfg: cfg, phase: PhaseActive}, nil
}

// Start enables tracking and arms the warning timer.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.enabled = true
	m.phase = PhaseActive
	m.idleFired = false
	m.armWarnLocked()
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Touch records qualifying user activity (pointer move, key press, scroll...).
// It resets the idle countdown only while ACTIVE; in WARNING it is ignored.
func (m *Machine) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || m.stopped {
		return
	}
	if next := transition(m.phase, eventTouch); next == PhaseActive && m.phase == PhaseActive {
		m.armWarnLocked()
	}
}

// Extend is the explicit "Continue" affirmation: it returns the machine from
// WARNING to ACTIVE and restarts the idle countdown.
func (m *Machine) Extend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || m.stopped || m.phase == PhaseLocked {
		return
	}
	m.phase = transition(m.phase, eventExtend)
	m.armWarnLocked()
}

// SetEnabled toggles tracking. Disabling cancels all timers and forces ACTIVE
// with no side effects; enabling is equivalent to Start.
func (m *Machine) SetEnabled(enabled bool) {
	if enabled {
		m.Start()
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
	m.phase = PhaseActive
	m.clearTimersLocked()
}

// Stop permanently cancels all timers. No callback fires after Stop returns.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.enabled = false
	m.clearTimersLocked()
}

// armWarnLocked atomically replaces pending timers with a fresh warning timer.
// Caller must hold m.mu.
func (m *Machine) armWarnLocked() {
	m.clearTimersLocked()
	gen := m.gen
	m.warnTimer = time.AfterFunc(m.cfg.IdleBudget-m.cfg.WarningLead, func() {
		m.warnExpired(gen)
	})
}

// clearTimersLocked stops pending timers and bumps the generation so any timer
// already past Stop cannot act. Caller must hold m.mu.
func (m *Machine) clearTimersLocked() {
	m.gen++
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.lockTimer != nil {
		m.lockTimer.Stop()
		m.lockTimer = nil
	}
}

func (m *Machine) warnExpired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.enabled || m.stopped {
		m.mu.Unlock()
		return
	}
	m.phase = transition(m.phase, eventWarnExpired)
	m.clearTimersLocked()
	lockGen := m.gen
	m.lockTimer = time.AfterFunc(m.cfg.WarningLead, func() {
		m.lockExpired(lockGen)
	})
	onWarning := m.cfg.OnWarning
	lead := m.cfg.WarningLead
	m.mu.Unlock()
	if onWarning != nil {
		onWarning(lead)
	}
}

func (m *Machine) lockExpired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.enabled || m.stopped || m.idleFired {
		m.mu.Unlock()
		return
	}
	m.phase = transition(m.phase, eventLockExpired)
	m.idleFired = true
	m.clearTimersLocked()
	onIdle := m.cfg.OnIdle
	m.mu.Unlock()
	if onIdle != nil {
		onIdle()
	}
}
