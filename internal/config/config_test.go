package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("API_BASE_URL", "https://api.example.com")
	os.Setenv("AUTH_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "https://api.example.com")
	}
	if cfg.PollInterval != "5s" {
		t.Errorf("PollInterval = %q, want %q", cfg.PollInterval, "5s")
	}
	if cfg.TrustTTLDays != 30 {
		t.Errorf("TrustTTLDays = %d, want 30", cfg.TrustTTLDays)
	}
	if cfg.IdleBudget != "15m" {
		t.Errorf("IdleBudget = %q, want %q", cfg.IdleBudget, "15m")
	}
	if cfg.WarningLead != "60s" {
		t.Errorf("WarningLead = %q, want %q", cfg.WarningLead, "60s")
	}
	if cfg.InviteDisplayTTL != "45s" {
		t.Errorf("InviteDisplayTTL = %q, want %q", cfg.InviteDisplayTTL, "45s")
	}
	if cfg.DemoMode {
		t.Error("DemoMode should default to false")
	}
}

func TestLoad_MissingBaseURLFails(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_TOKEN", "tok")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without API_BASE_URL")
	}
}

func TestLoad_MissingTokenFails(t *testing.T) {
	os.Clearenv()
	os.Setenv("API_BASE_URL", "https://api.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without AUTH_TOKEN or AUTH_TOKEN_FILE")
	}
}

func TestLoad_TokenFileSatisfiesTokenRequirement(t *testing.T) {
	os.Clearenv()
	os.Setenv("API_BASE_URL", "https://api.example.com")
	os.Setenv("AUTH_TOKEN_FILE", "/run/secrets/token")

	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_DemoModeForbiddenInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("API_BASE_URL", "https://api.example.com")
	os.Setenv("AUTH_TOKEN", "tok")
	os.Setenv("DEMO_MODE", "true")
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject DEMO_MODE in production")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("API_BASE_URL", "https://api.example.com")
	os.Setenv("AUTH_TOKEN", "tok")
	os.Setenv("POLL_INTERVAL", "2s")
	os.Setenv("TRUST_TTL_DAYS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollIntervalDuration() != 2*time.Second {
		t.Errorf("PollIntervalDuration = %v, want 2s", cfg.PollIntervalDuration())
	}
	if cfg.TrustTTL() != 7*24*time.Hour {
		t.Errorf("TrustTTL = %v, want 168h", cfg.TrustTTL())
	}
}

func TestDurationAccessors_FallBackOnGarbage(t *testing.T) {
	cfg := &Config{
		PollInterval:     "not-a-duration",
		IdleBudget:       "",
		WarningLead:      "-5s",
		InviteDisplayTTL: "zzz",
	}
	if got := cfg.PollIntervalDuration(); got != 5*time.Second {
		t.Errorf("PollIntervalDuration = %v, want 5s", got)
	}
	if got := cfg.IdleBudgetDuration(); got != 15*time.Minute {
		t.Errorf("IdleBudgetDuration = %v, want 15m", got)
	}
	if got := cfg.WarningLeadDuration(); got != 60*time.Second {
		t.Errorf("WarningLeadDuration = %v, want 60s", got)
	}
	if got := cfg.InviteDisplayTTLDuration(); got != 45*time.Second {
		t.Errorf("InviteDisplayTTLDuration = %v, want 45s", got)
	}
}
