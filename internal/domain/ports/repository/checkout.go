package repository

import (
	"context"

	"github.com/dgeemedia/business-sub001/internal/domain/model"
)

// OutcomeStore records the terminal outcome of a session keyed by its
// reference. Re-issuing a verification for an already-settled reference
// replays the stored outcome instead of hitting the network again.
type OutcomeStore interface {
	// Get returns domain.ErrNotFound when no outcome is recorded.
	Get(ctx context.Context, reference string) (*model.SessionOutcome, error)
	Put(ctx context.Context, reference string, out *model.SessionOutcome) error
}

// AttemptRepository journals payment attempts. Implementations must be safe
// to call best-effort: the orchestrator logs and ignores journal errors.
type AttemptRepository interface {
	Save(ctx context.Context, att *model.PaymentAttempt) error
	MarkOutcome(ctx context.Context, reference string, state model.SessionState, errMsg string) error
}
