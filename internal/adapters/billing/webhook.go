package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
)

// WebhookEvent is the normalized form of one payment-processor webhook
// delivery. EventID is the provider-assigned id used for deduplication;
// CustomerID is the natural key tying the event to a user.
type WebhookEvent struct {
	EventID    string
	EventType  string
	CustomerID string
	Status     domainauth.SubscriptionStatus
}

// ExtractorConfig maps provider payload paths onto WebhookEvent fields using
// JMESPath expressions. Payment processors bury tier facts at different
// depths per event type, so the paths are configuration, not code.
type ExtractorConfig struct {
	EventIDPath    string
	EventTypePath  string
	CustomerIDPath string
	TierPath       string
	PlanPath       string
	StatusPath     string
	CreditsPath    string
}

// DefaultExtractorConfig matches the Stripe-style envelope
// {id, type, data: {object: {...}}}.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		EventIDPath:    "id",
		EventTypePath:  "type",
		CustomerIDPath: "data.object.customer",
		TierPath:       "data.object.metadata.tier",
		PlanPath:       "data.object.plan.nickname",
		StatusPath:     "data.object.status",
		CreditsPath:    "data.object.metadata.credits",
	}
}

// Extractor pulls subscription facts out of raw webhook JSON.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor validates every configured expression up front so a bad path
// fails at construction, not on the first delivery.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	for name, expr := range map[string]string{
		"event id":    cfg.EventIDPath,
		"event type":  cfg.EventTypePath,
		"customer id": cfg.CustomerIDPath,
		"tier":        cfg.TierPath,
		"plan":        cfg.PlanPath,
		"status":      cfg.StatusPath,
		"credits":     cfg.CreditsPath,
	} {
		if expr == "" {
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("compile %s path %q: %w", name, expr, err)
		}
	}
	if cfg.EventIDPath == "" {
		return nil, fmt.Errorf("event id path is required")
	}
	return &Extractor{cfg: cfg}, nil
}

// Extract parses one webhook delivery. Missing optional paths yield zero
// values; a missing event id is an error because dedup depends on it.
func (e *Extractor) Extract(payload []byte) (WebhookEvent, error) {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return WebhookEvent{}, fmt.Errorf("parse webhook payload: %w", err)
	}

	ev := WebhookEvent{
		EventID:    searchString(e.cfg.EventIDPath, doc),
		EventType:  searchString(e.cfg.EventTypePath, doc),
		CustomerID: searchString(e.cfg.CustomerIDPath, doc),
	}
	if ev.EventID == "" {
		return WebhookEvent{}, fmt.Errorf("webhook payload missing event id at %q", e.cfg.EventIDPath)
	}

	ev.Status = domainauth.SubscriptionStatus{
		Tier:    searchString(e.cfg.TierPath, doc),
		Plan:    searchString(e.cfg.PlanPath, doc),
		Status:  searchString(e.cfg.StatusPath, doc),
		Credits: searchInt(e.cfg.CreditsPath, doc),
	}
	ev.Status.IsTrialing = strings.EqualFold(ev.Status.Status, "trialing")
	return ev, nil
}

func searchString(expr string, doc any) string {
	if expr == "" {
		return ""
	}
	v, err := jmespath.Search(expr, doc)
	if err != nil || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

func searchInt(expr string, doc any) int {
	if expr == "" {
		return 0
	}
	v, err := jmespath.Search(expr, doc)
	if err != nil || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		var n int
		if _, scanErr := fmt.Sscanf(t, "%d", &n); scanErr == nil {
			return n
		}
	}
	return 0
}
