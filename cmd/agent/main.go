// Agent runs the telehealth call-invitation client: invitation polling with an
// optional push fallback channel, plus the idle-timeout / session-lock
// protocol. Set API_BASE_URL and AUTH_TOKEN (or AUTH_TOKEN_FILE); see
// internal/config for the full key list.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"telehealth-call-plane/agent/internal/api"
	"telehealth-call-plane/agent/internal/bus"
	"telehealth-call-plane/agent/internal/config"
	"telehealth-call-plane/agent/internal/invite"
	"telehealth-call-plane/agent/internal/invite/domain"
	"telehealth-call-plane/agent/internal/push"
	"telehealth-call-plane/agent/internal/session"
	"telehealth-call-plane/agent/internal/token"
	"telehealth-call-plane/agent/internal/trust"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var tokens token.Source
	if cfg.AuthTokenFile != "" {
		tokens = &token.FileSource{Path: cfg.AuthTokenFile}
	} else {
		tokens = token.StaticSource(cfg.AuthToken)
	}

	events := bus.New()
	client := api.NewClient(cfg.APIBaseURL, tokens, trust.Fingerprint())
	trustStore := trust.NewFileStore(cfg.TrustStorePath, cfg.TrustTTL())

	sess, err := session.NewController(session.Config{
		Verifier:    client,
		Trust:       trustStore,
		Events:      events,
		IdleBudget:  cfg.IdleBudgetDuration(),
		WarningLead: cfg.WarningLeadDuration(),
	})
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	manager := invite.NewManager(client, events, cfg.InviteDisplayTTLDuration())
	var poller *invite.Poller
	if cfg.DemoMode {
		poller = invite.NewDemoPoller(client, manager)
	} else {
		poller = invite.NewPoller(client, manager, cfg.PollIntervalDuration())
	}

	// Push is opportunistic: a failed connect leaves polling as the only path.
	var channel *push.Channel
	if cfg.NATSURL != "" {
		channel = connectPush(cfg.NATSURL, tokens, events)
		if channel != nil {
			defer channel.Close()
			channel.SubscribeInvitations(func(inv domain.Invitation) {
				manager.Deliver([]domain.Invitation{inv})
			})
		}
	}

	// Toast-level surfacing of notable events.
	events.Subscribe(invite.EventPresented, func(payload any) {
		if inv, ok := payload.(domain.Invitation); ok {
			log.Printf("agent: incoming call from %s (%s)", inv.InitiatorName(), inv.AppointmentType)
		}
	})
	events.Subscribe(invite.EventExpired, func(payload any) {
		if inv, ok := payload.(domain.Invitation); ok {
			log.Printf("agent: invitation %s timed out locally", inv.AppointmentID)
		}
	})
	events.Subscribe(session.EventLocked, func(any) {
		log.Printf("agent: session locked after inactivity")
	})
	events.Subscribe(session.EventLoggedOut, func(any) {
		log.Printf("agent: session logged out")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)
	sess.Start()

	log.Printf("agent %s polling %s every %s", uuid.New().String(), cfg.APIBaseURL, cfg.PollIntervalDuration())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("agent: shutting down...")
	cancel()
	sess.Stop()
	manager.Stop()
	log.Println("agent: stopped")
}

// connectPush opens the push channel using the identity baked into the bearer
// token. Any failure is logged and nil is returned; polling is unaffected.
func connectPush(natsURL string, tokens token.Source, events *bus.Bus) *push.Channel {
	raw, err := tokens.Token()
	if err != nil {
		log.Printf("push channel unavailable, polling only: %v", err)
		return nil
	}
	claims, err := token.Parse(raw)
	if err != nil {
		log.Printf("push channel unavailable, polling only: %v", err)
		return nil
	}
	channel, err := push.Connect(natsURL, tokens, claims.UserID(), claims.Role, events)
	if err != nil {
		log.Printf("push channel unavailable, polling only: %v", err)
		return nil
	}
	return channel
}
