package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coverforge/authd/internal/adapters/billing"
	"github.com/coverforge/authd/internal/bus"
	domainauth "github.com/coverforge/authd/internal/domain/auth"
	apperrors "github.com/coverforge/authd/internal/errors"
	"github.com/coverforge/authd/internal/observability/statsd"
	"github.com/coverforge/authd/internal/ports"
)

const defaultDedupTTL = 48 * time.Hour

// SubscriptionReconcilerOptions groups dependencies for SubscriptionReconciler.
type SubscriptionReconcilerOptions struct {
	Lifecycle *Lifecycle
	Source    ports.SubscriptionSource
	Dedup     ports.DedupStore
	Bus       *bus.Bus
	Logger    *slog.Logger
	Metrics   statsd.Sink
	DedupTTL  time.Duration
}

// SubscriptionReconciler keeps tier/credit facts in step with the session.
// It refetches subscription status whenever the lifecycle manager signals an
// auth change, folds payment-webhook events in idempotently, and republishes
// the merged facts on the subscription channel of the bus.
type SubscriptionReconciler struct {
	lifecycle *Lifecycle
	source    ports.SubscriptionSource
	dedup     ports.DedupStore
	bus       *bus.Bus
	logger    *slog.Logger
	metrics   statsd.Sink
	dedupTTL  time.Duration

	unsubscribe func()

	mu      sync.Mutex
	current *domainauth.SubscriptionStatus
}

// NewSubscriptionReconciler constructs the reconciler and subscribes it to
// auth-state changes. Call Close to detach.
func NewSubscriptionReconciler(opts SubscriptionReconcilerOptions) (*SubscriptionReconciler, error) {
	if opts.Lifecycle == nil {
		return nil, errRequired("Lifecycle")
	}
	if opts.Source == nil {
		return nil, errRequired("Source")
	}
	if opts.Bus == nil {
		return nil, errRequired("Bus")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &SubscriptionReconciler{
		lifecycle: opts.Lifecycle,
		source:    opts.Source,
		dedup:     opts.Dedup,
		bus:       opts.Bus,
		logger:    logger.With("component", "subscription_reconciler"),
		metrics:   opts.Metrics,
		dedupTTL:  opts.DedupTTL,
	}
	if r.dedupTTL <= 0 {
		r.dedupTTL = defaultDedupTTL
	}

	r.unsubscribe = opts.Bus.Subscribe(bus.KindAuth, r.onAuthChange)
	return r, nil
}

func errRequired(name string) error {
	return apperrors.Internal(name + " is required")
}

// Current returns the last reconciled subscription status, or nil before the
// first successful fetch.
func (r *SubscriptionReconciler) Current() *domainauth.SubscriptionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	s := *r.current
	return &s
}

// onAuthChange reacts to lifecycle transitions: sign-in and refresh trigger a
// refetch keyed by the new token, sign-out drops the cached facts.
func (r *SubscriptionReconciler) onAuthChange(ev domainauth.Event) {
	switch ev.Kind {
	case domainauth.EventSignedIn, domainauth.EventTokenRefreshed:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := r.Reconcile(ctx); err != nil {
			r.logger.Warn("subscription reconcile after auth change failed", "error", err)
		}
	case domainauth.EventSignedOut:
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
	default:
	}
}

// Reconcile fetches the subscription status for the current session token
// and publishes the result when it changed.
func (r *SubscriptionReconciler) Reconcile(ctx context.Context) error {
	sess := r.lifecycle.CurrentSession()
	if sess == nil {
		return apperrors.Unauthenticated("no active session")
	}

	status, err := r.source.Status(ctx, sess.AccessToken)
	if err != nil {
		r.count("subscription.reconcile", "error")
		return err
	}

	r.apply(status)
	r.count("subscription.reconcile", "ok")
	return nil
}

// HandleWebhook folds one payment-processor event into subscription state.
// Deliveries are deduplicated by provider event id, so retried webhooks are
// no-ops. Returns true when the event was applied, false when it was a
// duplicate or addressed to a different user.
func (r *SubscriptionReconciler) HandleWebhook(ctx context.Context, ev billing.WebhookEvent) (bool, error) {
	if r.dedup != nil {
		first, err := r.dedup.MarkProcessed(ctx, ev.EventID, r.dedupTTL)
		if err != nil {
			return false, apperrors.Wrap(err, apperrors.ErrCodeTransient, "webhook dedup")
		}
		if !first {
			r.count("subscription.webhook", "duplicate")
			return false, nil
		}
	}

	r.apply(ev.Status)
	r.count("subscription.webhook", "applied")
	return true, nil
}

// apply merges new facts into the snapshot and fans them out when changed.
func (r *SubscriptionReconciler) apply(status domainauth.SubscriptionStatus) {
	r.mu.Lock()
	changed := r.current == nil || *r.current != status
	s := status
	r.current = &s
	r.mu.Unlock()

	if !changed {
		return
	}
	r.bus.Publish(bus.KindSubscription, domainauth.Event{
		Kind:         domainauth.EventSubscriptionChanged,
		Subscription: &s,
		At:           time.Now(),
	})
}

// Close detaches the reconciler from the bus.
func (r *SubscriptionReconciler) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

func (r *SubscriptionReconciler) count(name, result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.Count(name, 1, map[string]string{"result": result})
}
