// Package billing provides adapters for the subscription-status side of the
// system: a bearer-token HTTP client for the status endpoint and a webhook
// payload extractor for payment-processor events.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
	apperrors "github.com/coverforge/authd/internal/errors"
	"github.com/coverforge/authd/internal/ports"
)

// Config captures the subset of the billing API behaviour we need.
type Config struct {
	StatusURL  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client fetches subscription status keyed by the current session token.
type Client struct {
	statusURL  string
	retryLimit int
	client     *http.Client
}

var _ ports.SubscriptionSource = (*Client)(nil)

// NewClient builds a billing status client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	statusURL := strings.TrimSpace(cfg.StatusURL)
	if statusURL == "" {
		return nil, errors.New("billing status url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		statusURL:  statusURL,
		retryLimit: retries,
		client:     hc,
	}, nil
}

// Status performs a bearer-authenticated GET against the status endpoint.
// Server-side failures are retried up to the configured limit.
func (c *Client) Status(ctx context.Context, accessToken string) (domainauth.SubscriptionStatus, error) {
	if accessToken == "" {
		return domainauth.SubscriptionStatus{}, apperrors.Unauthenticated("missing access token")
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := c.fetch(ctx, accessToken)
		if err == nil {
			return status, nil
		}
		lastErr = err
		if !apperrors.IsTransient(err) || ctx.Err() != nil {
			return domainauth.SubscriptionStatus{}, err
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return domainauth.SubscriptionStatus{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}
	return domainauth.SubscriptionStatus{}, lastErr
}

func (c *Client) fetch(ctx context.Context, accessToken string) (domainauth.SubscriptionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL, nil)
	if err != nil {
		return domainauth.SubscriptionStatus{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domainauth.SubscriptionStatus{}, apperrors.Wrap(err, apperrors.ErrCodeTransient, "billing status request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domainauth.SubscriptionStatus{}, apperrors.Wrap(err, apperrors.ErrCodeTransient, "read billing response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domainauth.SubscriptionStatus{}, apperrors.Unauthenticated("billing status rejected token")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domainauth.SubscriptionStatus{}, apperrors.Transient(
			fmt.Sprintf("billing status returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return domainauth.SubscriptionStatus{}, apperrors.Internalf("billing status returned %d", resp.StatusCode)
	}

	var status domainauth.SubscriptionStatus
	if unmarshalErr := json.Unmarshal(data, &status); unmarshalErr != nil {
		return domainauth.SubscriptionStatus{}, fmt.Errorf("decode billing response: %w", unmarshalErr)
	}
	return status, nil
}
