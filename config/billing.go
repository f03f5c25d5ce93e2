package config

import (
	"strings"
	"time"
)

// BillingConfig groups subscription-status and webhook configuration.
type BillingConfig struct {
	// StatusURL is the bearer-authenticated subscription-status endpoint.
	StatusURL  string        `env:"STATUS_URL"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"RETRY_LIMIT" envDefault:"2"`

	// DedupTTL bounds how long processed webhook event ids are remembered.
	DedupTTL time.Duration `env:"DEDUP_TTL" envDefault:"48h"`
}

// Sanitize normalises billing configuration values.
func (c *BillingConfig) Sanitize() {
	c.StatusURL = strings.TrimSpace(c.StatusURL)
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = 48 * time.Hour
	}
}

// IsEnabled reports whether the subscription reconciler should be wired.
func (c *BillingConfig) IsEnabled() bool {
	return c.StatusURL != ""
}
