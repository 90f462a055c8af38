// Package invite delivers call invitations to the user: a notification manager
// that surfaces exactly one actionable invitation at a time, fed by any number
// of sources (interval poller, push channel) through a single Deliver entry
// point.
package invite

import (
	"context"
	"errors"
	"log"
	"net/url"
	"sync"
	"time"

	"telehealth-call-plane/agent/internal/bus"
	"telehealth-call-plane/agent/internal/invite/domain"
)

// DefaultDisplayTTL is how long an invitation stays actionable once displayed,
// independent of the server-side expiry.
const DefaultDisplayTTL = 45 * time.Second

// Events published on the bus.
const (
	// EventPresented carries the domain.Invitation promoted to current.
	EventPresented = "invitation.presented"
	// EventCleared carries the domain.Invitation dismissed because the server
	// reported it gone or it was accepted/declined.
	EventCleared = "invitation.cleared"
	// EventExpired carries the domain.Invitation whose local display countdown
	// reached zero.
	EventExpired = "invitation.expired"
	// EventRoomReady carries a RoomEntry after a successful accept.
	EventRoomReady = "call.room-ready"
)

// ErrNoCurrent is returned by Accept/Decline when no invitation is displayed.
var ErrNoCurrent = errors.New("invite: no current invitation")

// Backend is the subset of the API client the manager needs.
type Backend interface {
	AcceptInvitation(ctx context.Context, appointmentID string) error
	DeclineInvitation(ctx context.Context, appointmentID, reason string) error
	JoinRoom(ctx context.Context, appointmentID string) (*domain.RoomDescriptor, error)
}

// Active is the currently displayed invitation with its local deadline.
type Active struct {
	Invitation domain.Invitation
	Deadline   time.Time
}

// RoomEntry describes where to navigate after accepting an invitation.
type RoomEntry struct {
	AppointmentID string
	Room          *domain.RoomDescriptor
	// Path is the call-room location with the initiating user's display name
	// URL-encoded as a query parameter.
	Path string
}

// Manager owns the local invitation state: one current invitation, extras
// queued in arrival order, deduplicated by appointment id. The local cache is
// disposable; an empty delivery clears everything. Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	backend    Backend
	events     *bus.Bus
	displayTTL time.Duration
	nowF       func() time.Time
	current    *Active
	queue      []domain.Invitation
	gen        uint64
	timer      *time.Timer
	stopped    bool
}

// NewManager returns a Manager publishing on events, with displayTTL falling
// back to DefaultDisplayTTL when non-positive.
func NewManager(backend Backend, events *bus.Bus, displayTTL time.Duration) *Manager {
	if displayTTL <= 0 {
		displayTTL = DefaultDisplayTTL
	}
	return &Manager{
		backend:    backend,
		events:     events,
		displayTTL: displayTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// Deliver ingests an invitation snapshot from any source. An empty snapshot
// dismisses the current invitation and drops the queue, converging the local
// cache with server-side expiry or processing. Known invitations are ignored;
// new ones queue behind the current invitation.
func (m *Manager) Deliver(invitations []domain.Invitation) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if len(invitations) == 0 {
		cleared := m.clearAllLocked()
		m.mu.Unlock()
		if cleared != nil {
			m.events.Publish(EventCleared, *cleared)
		}
		return
	}
	for _, inv := range invitations {
		if inv.Validate() != nil || m.knownLocked(inv.AppointmentID) {
			continue
		}
		m.queue = append(m.queue, inv)
	}
	var presented *domain.Invitation
	if m.current == nil {
		presented = m.promoteLocked()
	}
	m.mu.Unlock()
	if presented != nil {
		m.events.Publish(EventPresented, *presented)
	}
}

// Current returns a snapshot of the displayed invitation, or nil.
func (m *Manager) Current() *Active {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	snapshot := *m.current
	return &snapshot
}

// QueueLen returns how many invitations wait behind the current one.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Accept resolves the current invitation: backend accept, room join, then a
// room-ready event with the initiator's name URL-encoded. Local state is
// cleared optimistically before the network calls; their failures are logged
// and returned for toast-level feedback only.
func (m *Manager) Accept(ctx context.Context) (*RoomEntry, error) {
	inv, ok := m.takeCurrent()
	if !ok {
		return nil, ErrNoCurrent
	}
	if err := m.backend.AcceptInvitation(ctx, inv.AppointmentID); err != nil {
		log.Printf("invite: accept %s failed: %v", inv.AppointmentID, err)
		return nil, err
	}
	room, err := m.backend.JoinRoom(ctx, inv.AppointmentID)
	if err != nil {
		log.Printf("invite: join room %s failed: %v", inv.AppointmentID, err)
		return nil, err
	}
	entry := &RoomEntry{
		AppointmentID: inv.AppointmentID,
		Room:          room,
		Path:          "/call/" + url.PathEscape(inv.AppointmentID) + "?user=" + url.QueryEscape(inv.InitiatorName()),
	}
	m.events.Publish(EventRoomReady, *entry)
	return entry, nil
}

// Decline resolves the current invitation with an optional reason. Local state
// is cleared optimistically; a network failure is logged and returned for
// toast-level feedback only.
func (m *Manager) Decline(ctx context.Context, reason string) error {
	inv, ok := m.takeCurrent()
	if !ok {
		return ErrNoCurrent
	}
	if err := m.backend.DeclineInvitation(ctx, inv.AppointmentID, reason); err != nil {
		log.Printf("invite: decline %s failed: %v", inv.AppointmentID, err)
		return err
	}
	return nil
}

// Advance dismisses the current invitation without contacting the backend and
// promotes the next queued one, if any.
func (m *Manager) Advance() {
	m.mu.Lock()
	if m.stopped || m.current == nil {
		m.mu.Unlock()
		return
	}
	cleared := m.current.Invitation
	m.current = nil
	m.clearTimerLocked()
	presented := m.promoteLocked()
	m.mu.Unlock()
	m.events.Publish(EventCleared, cleared)
	if presented != nil {
		m.events.Publish(EventPresented, *presented)
	}
}

// Stop cancels the display timer and drops all local state. No event fires
// after Stop returns.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.current = nil
	m.queue = nil
	m.clearTimerLocked()
}

// takeCurrent resolves the displayed invitation: it is cleared optimistically
// and the next queued invitation, if any, is promoted.
func (m *Manager) takeCurrent() (domain.Invitation, bool) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return domain.Invitation{}, false
	}
	inv := m.current.Invitation
	m.current = nil
	m.clearTimerLocked()
	presented := m.promoteLocked()
	m.mu.Unlock()
	m.events.Publish(EventCleared, inv)
	if presented != nil {
		m.events.Publish(EventPresented, *presented)
	}
	return inv, true
}

// knownLocked reports whether appointmentID is the current invitation or
// already queued. Caller must hold m.mu.
func (m *Manager) knownLocked(appointmentID string) bool {
	if m.current != nil && m.current.Invitation.AppointmentID == appointmentID {
		return true
	}
	for _, inv := range m.queue {
		if inv.AppointmentID == appointmentID {
			return true
		}
	}
	return false
}

// promoteLocked makes the queue head current and arms its display countdown.
// Returns the promoted invitation, or nil when the queue is empty. Caller must
// hold m.mu.
func (m *Manager) promoteLocked() *domain.Invitation {
	if len(m.queue) == 0 {
		return nil
	}
	inv := m.queue[0]
	m.queue = m.queue[1:]
	m.current = &Active{Invitation: inv, Deadline: m.nowF().Add(m.displayTTL)}
	m.clearTimerLocked()
	gen := m.gen
	m.timer = time.AfterFunc(m.displayTTL, func() {
		m.displayExpired(gen)
	})
	return &inv
}

// clearAllLocked drops the queue and current invitation, returning the
// dismissed current one (if any). Caller must hold m.mu.
func (m *Manager) clearAllLocked() *domain.Invitation {
	m.queue = nil
	m.clearTimerLocked()
	if m.current == nil {
		return nil
	}
	inv := m.current.Invitation
	m.current = nil
	return &inv
}

// clearTimerLocked stops the display timer and bumps the generation so a timer
// already firing becomes a no-op. Caller must hold m.mu.
func (m *Manager) clearTimerLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// displayExpired dismisses the current invitation when its local countdown
// reaches zero. This is a purely local timeout: the decline endpoint is not
// called, so a missed notification does not penalize the callee. The next
// queued invitation, if any, is promoted.
func (m *Manager) displayExpired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.stopped || m.current == nil {
		m.mu.Unlock()
		return
	}
	expired := m.current.Invitation
	m.current = nil
	presented := m.promoteLocked()
	m.mu.Unlock()
	m.events.Publish(EventExpired, expired)
	if presented != nil {
		m.events.Publish(EventPresented, *presented)
	}
}
