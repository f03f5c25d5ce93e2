package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the identity backend mode for the application.
type AuthMode string

const (
	// AuthModeGoTrue uses a GoTrue-compatible identity HTTP API.
	AuthModeGoTrue AuthMode = "gotrue"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "gotrue", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: gotrue, mock)", v)
	}
}

// IdentityConfig contains the GoTrue-compatible backend configuration.
type IdentityConfig struct {
	BaseURL string `env:"BASE_URL"`
	APIKey  string `env:"API_KEY"`

	// Issuer enables OIDC discovery for redirect-based OAuth flows.
	Issuer       string `env:"ISSUER"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE" envDefault:"openid profile email"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID      string `env:"USER_ID"      envDefault:"dev-user"`
	Email       string `env:"EMAIL"        envDefault:"dev@example.com"`
	DisplayName string `env:"DISPLAY_NAME" envDefault:"Dev User"`
}

// RefreshConfig controls the background session refresh loop.
type RefreshConfig struct {
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"60s"`
	ExpiryBuffer time.Duration `env:"EXPIRY_BUFFER" envDefault:"5m"`
	KeepAlive    time.Duration `env:"KEEP_ALIVE"    envDefault:"30m"`
}

// Sanitize applies guardrails to refresh cadences.
func (c *RefreshConfig) Sanitize() {
	if c.TickInterval <= 0 {
		c.TickInterval = 60 * time.Second
	}
	if c.ExpiryBuffer <= 0 {
		c.ExpiryBuffer = 5 * time.Minute
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Minute
	}
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity backend to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"gotrue"`

	// Identity configuration (used when Mode=gotrue).
	Identity IdentityConfig `envPrefix:"IDENTITY_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// Refresh loop cadences.
	Refresh RefreshConfig `envPrefix:"AUTH_REFRESH_"`

	// SiteDomain anchors the OAuth redirect allowlist (eTLD+1 match).
	SiteDomain string `env:"SITE_DOMAIN"`
}
