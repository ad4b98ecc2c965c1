package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidPlan        = errors.New("plan not found in catalog")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAdapterUnavailable = errors.New("checkout adapter unavailable")
	ErrSessionBusy        = errors.New("payment session is not idle")
	ErrNotManual          = errors.New("session is not on the manual path")
)

// VerificationError is the only gateway-path error shown to the user verbatim:
// the provider confirmed the charge but the merchant backend rejected or could
// not confirm it. Retryable after a reset.
type VerificationError struct {
	Message string
}

func (e *VerificationError) Error() string { return e.Message }

// RecorderError reports a failed manual-transfer submission. User-visible and
// retryable from the manual path.
type RecorderError struct {
	Message string
}

func (e *RecorderError) Error() string { return e.Message }
