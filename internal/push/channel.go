// Package push is the real-time fallback channel for call invitations, layered
// over NATS. It is strictly additive: the polling path works unchanged when
// the channel is absent or down, and channel failures are logged, never
// surfaced to callers.
package push

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"telehealth-call-plane/agent/internal/bus"
	"telehealth-call-plane/agent/internal/invite/domain"
	"telehealth-call-plane/agent/internal/token"
)

// EventInvitation is published on the bus for every pushed call invitation.
const EventInvitation = "call-invitation"

// Subjects used on the wire. Invitation pushes are targeted per user id.
const (
	subjectRegister         = "call.register"
	subjectInvitationPrefix = "call.invitation."
)

// Bounded reconnect with a fixed wait; exhausting retries closes the channel
// and leaves polling as the only delivery path.
const (
	maxReconnects = 10
	reconnectWait = 2 * time.Second
)

// registration is sent on connect so invitation pushes can be targeted.
type registration struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Channel is a connected push channel scoped to one authenticated user.
type Channel struct {
	conn   *nats.Conn
	events *bus.Bus
	userID string
}

// Connect opens the channel, authenticates with the current bearer token,
// registers the user so pushes can be targeted, and starts fanning incoming
// invitations out on the bus. Returns an error when the channel cannot be
// established; callers degrade to polling.
func Connect(natsURL string, tokens token.Source, userID, role string, events *bus.Bus) (*Channel, error) {
	tok, err := tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("push: no auth token: %w", err)
	}
	conn, err := nats.Connect(natsURL,
		nats.Token(tok),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("push: reconnected to %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("push: disconnected: %v", err)
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("push: channel closed, polling remains active")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("push: connect %s: %w", natsURL, err)
	}
	c := &Channel{conn: conn, events: events, userID: userID}
	if err := c.register(userID, role); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Subscribe(subjectInvitationPrefix+userID, c.handleInvitation); err != nil {
		conn.Close()
		return nil, fmt.Errorf("push: subscribe: %w", err)
	}
	return c, nil
}

// register announces the user id and role to the server.
func (c *Channel) register(userID, role string) error {
	raw, err := json.Marshal(registration{UserID: userID, Role: role})
	if err != nil {
		return err
	}
	if err := c.conn.Publish(subjectRegister, raw); err != nil {
		return fmt.Errorf("push: register: %w", err)
	}
	return nil
}

// handleInvitation decodes a pushed invitation and fans it out on the bus.
// Malformed payloads are logged and dropped.
func (c *Channel) handleInvitation(msg *nats.Msg) {
	var inv domain.Invitation
	if err := json.Unmarshal(msg.Data, &inv); err != nil {
		log.Printf("push: bad invitation payload: %v", err)
		return
	}
	if err := inv.Validate(); err != nil {
		log.Printf("push: dropped invitation: %v", err)
		return
	}
	c.events.Publish(EventInvitation, inv)
}

// SubscribeInvitations registers fn for pushed invitations and returns an
// unsubscribe function. Multiple listeners are supported.
func (c *Channel) SubscribeInvitations(fn func(domain.Invitation)) (unsubscribe func()) {
	return c.events.Subscribe(EventInvitation, func(payload any) {
		if inv, ok := payload.(domain.Invitation); ok {
			fn(inv)
		}
	})
}

// PublishInvitation emits a call invitation directly to the target user id.
// Used by professional-side clients when a direct invite action occurs.
func (c *Channel) PublishInvitation(targetUserID string, inv domain.Invitation) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	if err := c.conn.Publish(subjectInvitationPrefix+targetUserID, raw); err != nil {
		return fmt.Errorf("push: publish invitation: %w", err)
	}
	return nil
}

// Close drains and closes the channel. Safe to call on a nil Channel.
func (c *Channel) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.conn.Close()
}
