// Package trust persists a device fingerprint per account so a browser-grade
// strong-auth challenge can be skipped on devices that already completed one.
// A missing or broken store is always safe: callers fall back to a full re-challenge.
package trust

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a trust record stays valid after a successful
// strong-auth verification.
const DefaultTTL = 30 * 24 * time.Hour

// Store persists trust records keyed by lowercase account email.
type Store interface {
	// Store writes a trust record for email with the device fingerprint,
	// expiring after the store's TTL.
	Store(ctx context.Context, email string)
	// Get returns the stored fingerprint for email if present and not expired.
	// Expired records are evicted on read and reported as absent.
	Get(ctx context.Context, email string) (fingerprint string, ok bool)
	// IsTrusted reports whether an unexpired trust record exists for email.
	IsTrusted(ctx context.Context, email string) bool
	// Revoke deletes the trust record for email. Used on full logout only;
	// an idle lock is a pause, not a sign-out, and must not revoke.
	Revoke(ctx context.Context, email string)
	// RevokeAll deletes every trust record.
	RevokeAll(ctx context.Context)
}

type record struct {
	Fingerprint string    `json:"fingerprint"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// FileStore is a Store backed by a JSON file, the agent's analog of browser
// local storage. With an empty path it is purely in-memory. All storage I/O
// failures are logged and swallowed; absence is the safe default.
type FileStore struct {
	mu          sync.Mutex
	path        string
	ttl         time.Duration
	fingerprint func() string
	nowF        func() time.Time
	records     map[string]record
}

// NewFileStore returns a FileStore persisting to path (empty for in-memory)
// with the given TTL (DefaultTTL if non-positive). Existing records are loaded
// eagerly; a missing or unreadable file starts empty.
func NewFileStore(path string, ttl time.Duration) *FileStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &FileStore{
		path:        path,
		ttl:         ttl,
		fingerprint: Fingerprint,
		nowF:        func() time.Time { return time.Now().UTC() },
		records:     make(map[string]record),
	}
	s.load()
	return s
}

// Store writes a trust record for email using the current device fingerprint.
func (s *FileStore) Store(ctx context.Context, email string) {
	key := normalizeEmail(email)
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record{
		Fingerprint: s.fingerprint(),
		ExpiresAt:   s.nowF().Add(s.ttl),
	}
	s.persist()
}

// Get returns the fingerprint for email if present and not expired.
func (s *FileStore) Get(ctx context.Context, email string) (string, bool) {
	key := normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return "", false
	}
	if !r.ExpiresAt.After(s.nowF()) {
		delete(s.records, key)
		s.persist()
		return "", false
	}
	return r.Fingerprint, true
}

// IsTrusted reports whether an unexpired trust record exists for email.
func (s *FileStore) IsTrusted(ctx context.Context, email string) bool {
	_, ok := s.Get(ctx, email)
	return ok
}

// Revoke deletes the trust record for email.
func (s *FileStore) Revoke(ctx context.Context, email string) {
	key := normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return
	}
	delete(s.records, key)
	s.persist()
}

// RevokeAll deletes every trust record.
func (s *FileStore) RevokeAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]record)
	s.persist()
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// load reads records from disk. Caller must not hold s.mu (constructor only).
func (s *FileStore) load() {
	if s.path == "" {
		return
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("trust: read %s failed: %v", s.path, err)
		}
		return
	}
	var records map[string]record
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Printf("trust: parse %s failed: %v", s.path, err)
		return
	}
	if records != nil {
		s.records = records
	}
}

// persist writes records to disk. Caller must hold s.mu.
func (s *FileStore) persist() {
	if s.path == "" {
		return
	}
	raw, err := json.Marshal(s.records)
	if err != nil {
		log.Printf("trust: marshal records failed: %v", err)
		return
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		log.Printf("trust: write %s failed: %v", s.path, err)
	}
}
