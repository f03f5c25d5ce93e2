// Package mocks provides mock implementations for testing the authd services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the port interfaces. The mocks are generated using go:generate directives
// and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockSource := mocks.NewMockSubscriptionSource(ctrl)
//	mockSource.EXPECT().Status(gomock.Any(), gomock.Any()).Return(status, nil)
//
// Hand-written doubles for the identity provider and stores live in the
// auth subpackage; they carry call counters the generated mocks lack.
package mocks

// Generate mock for IdentityProvider interface from internal/ports.
// This creates MockIdentityProvider with methods for all interface methods:
// CurrentSession, SignUp, SignInWithPassword, OAuthURL, ExchangeCode,
// SignOut, ResetPassword, UpdatePassword, Refresh, User, OnAuthStateChange
//go:generate mockgen -package=mocks -destination=identity_provider_mock.go github.com/coverforge/authd/internal/ports IdentityProvider

// Generate mock for SessionStore interface from internal/ports.
// This creates MockSessionStore with methods: Save, Load, Clear
//go:generate mockgen -package=mocks -destination=session_store_mock.go github.com/coverforge/authd/internal/ports SessionStore

// Generate mock for SubscriptionSource interface from internal/ports.
// This creates MockSubscriptionSource with methods: Status
//go:generate mockgen -package=mocks -destination=subscription_source_mock.go github.com/coverforge/authd/internal/ports SubscriptionSource

// Generate mock for DedupStore interface from internal/ports.
// This creates MockDedupStore with methods: MarkProcessed
//go:generate mockgen -package=mocks -destination=dedup_store_mock.go github.com/coverforge/authd/internal/ports DedupStore
