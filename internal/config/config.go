// Package config loads and validates agent config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds agent configuration loaded from the environment.
type Config struct {
	// APIBaseURL is the backend base URL (e.g. https://api.example.com). Required.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// AuthToken is a fixed bearer token. Use AuthTokenFile in deployments so an
	// external login flow can rotate the token without restarting the agent.
	AuthToken string `mapstructure:"AUTH_TOKEN"`
	// AuthTokenFile is a path to a file holding the bearer token; read on every request.
	AuthTokenFile string `mapstructure:"AUTH_TOKEN_FILE"`
	// TrustStorePath is the JSON file for device trust records; empty keeps them in memory only.
	TrustStorePath string `mapstructure:"TRUST_STORE_PATH"`
	// TrustTTLDays is the device trust record lifetime in days (default 30).
	TrustTTLDays int `mapstructure:"TRUST_TTL_DAYS"`
	// PollInterval is the invitation poll interval (e.g. "5s").
	PollInterval string `mapstructure:"POLL_INTERVAL"`
	// DemoMode enables the dev polling profile (10s interval, 5% trigger chance).
	// Must not be true when Env is production.
	DemoMode bool `mapstructure:"DEMO_MODE"`
	// NATSURL is the push channel endpoint (e.g. nats://localhost:4222); empty disables push.
	NATSURL string `mapstructure:"NATS_URL"`
	// IdleBudget is the total allowed inactivity before lock (e.g. "15m").
	IdleBudget string `mapstructure:"IDLE_BUDGET"`
	// WarningLead is the idle warning countdown length (e.g. "60s").
	WarningLead string `mapstructure:"WARNING_LEAD"`
	// InviteDisplayTTL is how long a displayed invitation stays actionable (e.g. "45s").
	InviteDisplayTTL string `mapstructure:"INVITE_DISPLAY_TTL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("AUTH_TOKEN", "")
	v.SetDefault("AUTH_TOKEN_FILE", "")
	v.SetDefault("TRUST_STORE_PATH", "")
	v.SetDefault("TRUST_TTL_DAYS", 30)
	v.SetDefault("POLL_INTERVAL", "5s")
	v.SetDefault("DEMO_MODE", false)
	v.SetDefault("NATS_URL", "")
	v.SetDefault("IDLE_BUDGET", "15m")
	v.SetDefault("WARNING_LEAD", "60s")
	v.SetDefault("INVITE_DISPLAY_TTL", "45s")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}
	if cfg.AuthToken == "" && cfg.AuthTokenFile == "" {
		return nil, errors.New("config: AUTH_TOKEN or AUTH_TOKEN_FILE must be set")
	}
	if cfg.DemoMode && cfg.Env == "production" {
		return nil, errors.New("config: DEMO_MODE must not be true when APP_ENV=production")
	}
	if cfg.TrustTTLDays <= 0 {
		cfg.TrustTTLDays = 30
	}

	return &cfg, nil
}

// PollIntervalDuration parses PollInterval. Returns 5s if unset or invalid.
func (c *Config) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// IdleBudgetDuration parses IdleBudget. Returns 15m if unset or invalid.
func (c *Config) IdleBudgetDuration() time.Duration {
	d, err := time.ParseDuration(c.IdleBudget)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// WarningLeadDuration parses WarningLead. Returns 60s if unset or invalid.
func (c *Config) WarningLeadDuration() time.Duration {
	d, err := time.ParseDuration(c.WarningLead)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// InviteDisplayTTLDuration parses InviteDisplayTTL. Returns 45s if unset or invalid.
func (c *Config) InviteDisplayTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.InviteDisplayTTL)
	if err != nil || d <= 0 {
		return 45 * time.Second
	}
	return d
}

// TrustTTL returns the trust record lifetime.
func (c *Config) TrustTTL() time.Duration {
	return time.Duration(c.TrustTTLDays) * 24 * time.Hour
}
