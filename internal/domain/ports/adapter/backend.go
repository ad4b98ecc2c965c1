package adapter

import (
	"context"

	"github.com/dgeemedia/business-sub001/internal/domain/model"
)

// VerifyRequest is the client-initiated verification contract against the
// merchant backend trust boundary. TxRef is passed on every call so the
// boundary can deduplicate activation server-side.
type VerifyRequest struct {
	TransactionID string
	TxRef         string
	Plan          string
	Provider      model.Provider
	BusinessID    string
}

// Verifier is the single source of truth for "payment happened". Any
// non-success response, including network failure, surfaces as
// *domain.VerificationError carrying whatever message is available.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*model.ActivationResult, error)
}

// ManualRequest records a user-asserted bank transfer as a pending request
// for back-office confirmation. Message embeds the plan name and the
// MANUAL-{slug}-{timestamp} reference so a human can reconcile it against a
// bank statement line.
type ManualRequest struct {
	BusinessID string
	Plan       string
	Reference  string
	Message    string
}

// ManualRecorder never activates a subscription itself; acceptance means
// "request recorded", nothing more. Failures surface as *domain.RecorderError.
type ManualRecorder interface {
	Record(ctx context.Context, req ManualRequest) error
}
