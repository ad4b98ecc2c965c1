package adapter

import (
	"context"

	"github.com/dgeemedia/business-sub001/internal/domain/model"
)

// OutcomeKind enumerates the single terminal result of one Initiate call.
type OutcomeKind int

const (
	OutcomeConfirmed   OutcomeKind = iota + 1 // provider reported a completed charge
	OutcomeCancelled                          // user closed the checkout before completing
	OutcomeUnavailable                        // transport/setup failure; degrade to manual
)

// Confirmation is the provider artifact handed to the verification boundary.
type Confirmation struct {
	TransactionID string // provider transaction id
	Reference     string // our tx_ref echoed back
	Provider      model.Provider
}

// Outcome is the single resolution of an initiated checkout.
type Outcome struct {
	Kind         OutcomeKind
	Confirmation *Confirmation // set iff Kind == OutcomeConfirmed
}

// CheckoutConfig is the provider-specific configuration for one hosted
// checkout, built purely from session + plan.
type CheckoutConfig struct {
	Provider      model.Provider
	PublicKey     string
	Reference     string
	Amount        int64
	Currency      string
	PlanID        string
	PlanName      string
	BusinessID    string
	CustomerEmail string

	// Pending, when set, receives the hosted checkout URL as soon as the
	// provider issues one, before the call blocks awaiting resolution.
	Pending func(checkoutURL string)
}

// Gateway is the hex port for hosted checkout providers.
type Gateway interface {
	Name() string

	// Configured reports whether a real (non-placeholder) credential is
	// present. When false the orchestrator skips the gateway entirely.
	Configured() bool

	// BuildConfig is pure; fails with domain.ErrInvalidPlan when the plan
	// lookup failed upstream.
	BuildConfig(sess *model.PaymentSession, plan *model.Plan) (CheckoutConfig, error)

	// Initiate opens the provider's checkout and blocks until exactly one
	// outcome resolves or ctx is done. Transport/setup failures are reported
	// as OutcomeUnavailable, not as an error: the manual path is always a
	// safe alternative.
	Initiate(ctx context.Context, cfg CheckoutConfig) (Outcome, error)
}

// CheckoutResolver is the completion side of an initiated checkout: the
// provider redirect handler resolves the pending session by reference. Both
// return false when no pending checkout matches (stale or unknown signal).
type CheckoutResolver interface {
	CompleteCheckout(reference, transactionID string) bool
	AbortCheckout(reference string) bool
}
