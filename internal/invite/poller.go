package invite

import (
	"context"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"telehealth-call-plane/agent/internal/invite/domain"
)

// Poll intervals: 5s in production; demo mode polls every 10s and only acts on
// a 5% random trigger so local development is not flooded with fetches.
const (
	DefaultPollInterval = 5 * time.Second
	DemoPollInterval    = 10 * time.Second

	demoTriggerChance = 0.05
)

// Fetcher retrieves the pending invitations for the authenticated user.
// Satisfied by *api.Client.
type Fetcher interface {
	ActiveInvitations(ctx context.Context) ([]domain.Invitation, error)
}

// Sink consumes invitation snapshots. Satisfied by *Manager.
type Sink interface {
	Deliver(invitations []domain.Invitation)
}

// Poller periodically fetches pending invitations and feeds them to a Sink.
// Ticks are serialized: a tick is skipped while the previous fetch is still in
// flight, so slow backends never queue up requests. Fetch failures are logged
// and retried on the next interval.
type Poller struct {
	fetcher  Fetcher
	sink     Sink
	interval time.Duration
	demo     bool
	randF    func() float64
	inFlight atomic.Bool
}

// NewPoller returns a Poller with the production interval. interval falls back
// to DefaultPollInterval when non-positive.
func NewPoller(fetcher Fetcher, sink Sink, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:  fetcher,
		sink:     sink,
		interval: interval,
		randF:    rand.Float64,
	}
}

// NewDemoPoller returns a Poller in demo mode: a 10s interval gated by a 5%
// random trigger chance per tick.
func NewDemoPoller(fetcher Fetcher, sink Sink) *Poller {
	p := NewPoller(fetcher, sink, DemoPollInterval)
	p.demo = true
	return p
}

// Run polls until ctx is cancelled. Blocking; run it on its own goroutine.
// After Run returns no further delivery happens from ticks started before
// cancellation.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one fetch cycle on its own goroutine, skipping when the previous
// cycle has not finished.
func (p *Poller) tick(ctx context.Context) {
	if p.demo && p.randF() >= demoTriggerChance {
		return
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.inFlight.Store(false)
		invitations, err := p.fetcher.ActiveInvitations(ctx)
		if err != nil {
			// Transient by policy: retried silently on the next tick.
			log.Printf("invite: poll failed: %v", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		p.sink.Deliver(invitations)
	}()
}
