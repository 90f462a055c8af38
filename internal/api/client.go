// Package api is the JSON HTTP client for the telehealth backend: invitation
// fetch/accept/decline, call-room join/end, and the lock-protocol password
// re-verify. All requests carry the bearer token and the device trust header.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"telehealth-call-plane/agent/internal/invite/domain"
	"telehealth-call-plane/agent/internal/token"
)

const defaultTimeout = 15 * time.Second

// ErrInvalidCredentials is returned by VerifyPassword when the backend rejects
// the password (401/403). Other failures are surfaced verbatim.
var ErrInvalidCredentials = errors.New("api: invalid credentials")

// Client calls the backend over JSON HTTP with bearer authentication.
type Client struct {
	BaseURL     string
	Tokens      token.Source
	DeviceToken string
	HTTPClient  *http.Client
}

// NewClient returns a Client for baseURL. deviceToken is the local device
// fingerprint sent as X-Device-Token; empty omits the header.
func NewClient(baseURL string, tokens token.Source, deviceToken string) *Client {
	return &Client{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Tokens:      tokens,
		DeviceToken: deviceToken,
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
	}
}

type invitationList struct {
	Invitations []domain.Invitation `json:"invitations"`
}

// ActiveInvitations fetches the pending call invitations addressed to the
// authenticated user.
func (c *Client) ActiveInvitations(ctx context.Context) ([]domain.Invitation, error) {
	var out invitationList
	if err := c.do(ctx, http.MethodGet, "/video/active-invitations", nil, &out); err != nil {
		return nil, err
	}
	return out.Invitations, nil
}

// AcceptInvitation marks the invitation accepted on the backend.
func (c *Client) AcceptInvitation(ctx context.Context, appointmentID string) error {
	body := map[string]string{"appointmentId": appointmentID}
	return c.do(ctx, http.MethodPost, "/video/accept-invitation", body, nil)
}

// DeclineInvitation marks the invitation declined on the backend. reason is
// optional and omitted when empty.
func (c *Client) DeclineInvitation(ctx context.Context, appointmentID, reason string) error {
	body := map[string]string{"appointmentId": appointmentID}
	if reason != "" {
		body["reason"] = reason
	}
	return c.do(ctx, http.MethodPost, "/video/decline-invitation", body, nil)
}

// JoinRoom joins the call room for the appointment and returns its descriptor.
func (c *Client) JoinRoom(ctx context.Context, appointmentID string) (*domain.RoomDescriptor, error) {
	body := map[string]string{"appointmentId": appointmentID}
	var out domain.RoomDescriptor
	if err := c.do(ctx, http.MethodPost, "/rtc/rooms/join", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndRoom ends the call room for the appointment.
func (c *Client) EndRoom(ctx context.Context, appointmentID string) error {
	return c.do(ctx, http.MethodPost, "/rtc/rooms/"+appointmentID+"/end", nil, nil)
}

// VerifyPassword re-verifies the user's password against the existing session
// for the lock overlay. The session token stays valid; this is not a fresh
// two-factor login. Returns ErrInvalidCredentials on 401/403.
func (c *Client) VerifyPassword(ctx context.Context, password string) error {
	body := map[string]string{"password": password}
	err := c.do(ctx, http.MethodPost, "/auth/verify-password", body, nil)
	var status *StatusError
	if errors.As(err, &status) && (status.Code == http.StatusUnauthorized || status.Code == http.StatusForbidden) {
		return ErrInvalidCredentials
	}
	return err
}

// Logout invalidates the session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api: request failed status=%d body=%s", e.Code, e.Body)
	}
	return fmt.Sprintf("api: request failed status=%d", e.Code)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok, err := c.Tokens.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if c.DeviceToken != "" {
		req.Header.Set("X-Device-Token", c.DeviceToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(b))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
