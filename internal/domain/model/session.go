package model

import (
	"fmt"
	"sync"
	"time"
)

// SessionState is the orchestrator-owned lifecycle of one payment attempt.
type SessionState string

const (
	StateIdle       SessionState = "idle"       // initial; also the reset target
	StateProcessing SessionState = "processing" // a network attempt is in flight
	StateSuccess    SessionState = "success"    // terminal; Result is set
	StateFailed     SessionState = "failed"     // terminal; Error is set
	StateManual     SessionState = "manual"     // bank-transfer fallback offered
)

// Terminal reports whether the state is sticky: once reached, only an
// explicit reset may leave it.
func (s SessionState) Terminal() bool { return s == StateSuccess || s == StateFailed }

// Provider identifies which path a session took. Chosen once at session
// start; switching provider requires a new session.
type Provider string

const (
	ProviderFlutterwave Provider = "flutterwave"
	ProviderPaystack    Provider = "paystack"
	ProviderManual      Provider = "manual"
)

// ActivationResult is the payload returned by the trust boundary when a
// payment is verified, or synthesized locally for an accepted manual record.
// Manual acceptance means "request accepted", not "subscription active";
// Status distinguishes the two.
type ActivationResult struct {
	SubscriptionID string    `json:"subscription_id,omitempty"`
	PlanID         string    `json:"plan"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	Status         string    `json:"status"` // "active" | "pending_review"
	Manual         bool      `json:"manual,omitempty"`
}

// PaymentSession is one attempt by a business to pay for one plan, from plan
// selection to a terminal outcome. Owned exclusively by its orchestrator.
type PaymentSession struct {
	ID            string // ULID
	BusinessID    string
	BusinessSlug  string
	CustomerEmail string
	PlanID        string
	Provider      Provider
	Reference     string // correlation token, minted before any network call
	State         SessionState
	CheckoutURL   string // hosted checkout link, surfaced for the UI layer
	Error         string // present only in Failed
	Result        *ActivationResult
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionOutcome is the durable record of a terminal state keyed by
// reference, used to deduplicate re-issued verifications.
type SessionOutcome struct {
	State  SessionState      `json:"state"`
	Error  string            `json:"error,omitempty"`
	Result *ActivationResult `json:"result,omitempty"`
}

// PaymentAttempt journals one initiation and its eventual outcome for
// back-office visibility. Best-effort; never load-bearing for the flow.
type PaymentAttempt struct {
	ID         string // UUID
	BusinessID string
	PlanID     string
	Provider   Provider
	Reference  string
	State      SessionState
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// refMu guards the monotonic timestamp component so two references minted in
// the same millisecond still differ.
var (
	refMu      sync.Mutex
	refLastMil int64
)

func nextRefMillis(t time.Time) int64 {
	refMu.Lock()
	defer refMu.Unlock()
	ms := t.UnixMilli()
	if ms <= refLastMil {
		ms = refLastMil + 1
	}
	refLastMil = ms
	return ms
}

// NewReference mints the session-unique gateway correlation token
// {businessSlug}-{planId}-{timestamp}.
func NewReference(businessSlug, planID string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%d", businessSlug, planID, nextRefMillis(t))
}

// NewManualReference mints the human-reconcilable token MANUAL-{slug}-{timestamp}
// embedded in the manual-payment message.
func NewManualReference(businessSlug string, t time.Time) string {
	return fmt.Sprintf("MANUAL-%s-%d", businessSlug, nextRefMillis(t))
}
