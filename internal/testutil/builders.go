package testutil

import (
	"time"

	"github.com/google/uuid"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
)

// UserBuilder provides a fluent interface for building User values for testing.
type UserBuilder struct {
	user domainauth.User
}

// NewUser creates a UserBuilder with sensible defaults and a unique id.
func NewUser() *UserBuilder {
	id := uuid.NewString()
	return &UserBuilder{
		user: domainauth.User{
			ID:          id,
			Email:       "user-" + id[:8] + "@example.com",
			DisplayName: "Test User",
		},
	}
}

// WithID sets the user id.
func (b *UserBuilder) WithID(id string) *UserBuilder {
	b.user.ID = id
	return b
}

// WithEmail sets the email.
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

// WithDisplayName sets the display name.
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.user.DisplayName = name
	return b
}

// WithAvatarURL sets the avatar URL.
func (b *UserBuilder) WithAvatarURL(url string) *UserBuilder {
	b.user.AvatarURL = url
	return b
}

// Build returns the constructed user.
func (b *UserBuilder) Build() domainauth.User {
	return b.user
}

// SessionBuilder provides a fluent interface for building Session values.
type SessionBuilder struct {
	sess domainauth.Session
}

// NewSession creates a SessionBuilder for a session valid for one hour.
func NewSession() *SessionBuilder {
	return &SessionBuilder{
		sess: domainauth.Session{
			AccessToken:  "access-" + uuid.NewString(),
			RefreshToken: "refresh-" + uuid.NewString(),
			TokenType:    "bearer",
			ExpiresAt:    time.Now().Add(time.Hour),
			User:         NewUser().Build(),
		},
	}
}

// WithUser sets the session's user.
func (b *SessionBuilder) WithUser(user domainauth.User) *SessionBuilder {
	b.sess.User = user
	return b
}

// WithExpiresAt sets the absolute expiry instant.
func (b *SessionBuilder) WithExpiresAt(at time.Time) *SessionBuilder {
	b.sess.ExpiresAt = at
	return b
}

// ExpiresIn sets the expiry relative to now.
func (b *SessionBuilder) ExpiresIn(d time.Duration) *SessionBuilder {
	b.sess.ExpiresAt = time.Now().Add(d)
	return b
}

// Expired marks the session as already expired.
func (b *SessionBuilder) Expired() *SessionBuilder {
	b.sess.ExpiresAt = time.Now().Add(-time.Minute)
	return b
}

// WithAccessToken sets the access token.
func (b *SessionBuilder) WithAccessToken(token string) *SessionBuilder {
	b.sess.AccessToken = token
	return b
}

// WithRefreshToken sets the refresh token.
func (b *SessionBuilder) WithRefreshToken(token string) *SessionBuilder {
	b.sess.RefreshToken = token
	return b
}

// Build returns the constructed session.
func (b *SessionBuilder) Build() domainauth.Session {
	return b.sess
}
