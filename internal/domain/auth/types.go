package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"time"
)

// User represents the authenticated identity as returned by the identity backend.
type User struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name,omitempty"`
	AvatarURL   string            `json:"avatar_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Session represents one authenticated credential grant. Both tokens are
// opaque strings owned by the identity backend; ExpiresAt is always an
// absolute instant, normalized once at the adapter boundary.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// IsValid reports whether the session satisfies the validity invariant:
// both tokens non-empty and the current time strictly before expiry.
func (s Session) IsValid(now time.Time) bool {
	return s.AccessToken != "" && s.RefreshToken != "" && now.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the session expires within buffer of now.
// A zero session (no expiry set) always reports true.
func (s Session) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return true
	}
	return s.ExpiresAt.Sub(now) <= buffer
}

// epochMillisThreshold separates second- and millisecond-resolution Unix
// timestamps. 9_999_999_999 seconds is the year 2286; no backend issues a
// seconds-based expiry that far out, so anything above it is milliseconds.
const epochMillisThreshold = 9_999_999_999

// maxPlausibleExpiry rejects garbage expiries instead of guessing the scale.
var maxPlausibleExpiry = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)

// EpochToTime normalizes a Unix timestamp of unknown resolution to time.Time.
// Values above epochMillisThreshold are treated as milliseconds, otherwise
// seconds. The second return value is false for zero/negative inputs and for
// values that normalize beyond any plausible expiry; callers should treat
// those sessions as already expired rather than guess.
func EpochToTime(v int64) (time.Time, bool) {
	if v <= 0 {
		return time.Time{}, false
	}
	var t time.Time
	if v > epochMillisThreshold {
		t = time.UnixMilli(v)
	} else {
		t = time.Unix(v, 0)
	}
	if t.After(maxPlausibleExpiry) {
		return time.Time{}, false
	}
	return t, true
}

// EventKind tags an auth change notification.
type EventKind string

const (
	EventSignedIn            EventKind = "signed_in"
	EventSignedOut           EventKind = "signed_out"
	EventTokenRefreshed      EventKind = "token_refreshed"
	EventUserUpdated         EventKind = "user_updated"
	EventSubscriptionChanged EventKind = "subscription_changed"
)

// Event is an immutable notification broadcast on every auth transition.
// Session is nil for sign-out; Subscription is set only for
// EventSubscriptionChanged.
type Event struct {
	Kind         EventKind
	Session      *Session
	Subscription *SubscriptionStatus
	At           time.Time
}

// SubscriptionStatus holds the tier/credit facts for the current user, as
// reported by the billing backend.
type SubscriptionStatus struct {
	Tier             string `json:"tier"`
	Plan             string `json:"plan"`
	Status           string `json:"status"`
	Credits          int    `json:"credits"`
	IsTrialing       bool   `json:"isTrialing"`
	HasPaymentMethod bool   `json:"hasPaymentMethod"`
	BillingCycle     string `json:"billing_cycle"`
	CancelAtEnd      bool   `json:"cancelAtPeriodEnd"`
}

// Context is the minimal read-only identity projection handed to payment
// flows. It is derived fresh from the backend on every request and never
// cached.
type Context struct {
	IsAuthenticated bool
	UserID          string
	UserEmail       string
}
