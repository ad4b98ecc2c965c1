// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/dgeemedia/business-sub001/internal/domain"
	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/adapter"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/repository"
	"github.com/dgeemedia/business-sub001/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// genericVerifyFailure is shown when the backend response carries no usable message.
const genericVerifyFailure = "payment could not be verified, please contact support"

// CheckoutUseCase drives one payment session from plan selection to a
// terminal outcome. One instance per user-facing flow; not reusable across
// businesses.
type CheckoutUseCase interface {
	// Pay runs the gateway path for the selected plan, blocking until the
	// hosted checkout resolves. Falls through to the manual path when the
	// gateway is unconfigured or unreachable.
	Pay(ctx context.Context, planID string) error
	// SubmitManualTransfer records a user-asserted bank transfer.
	SubmitManualTransfer(ctx context.Context) error
	// PayManually re-enters the manual path directly from Failed.
	PayManually() error
	// Reset returns the session to Idle from any state, discarding the
	// reference and any error/result.
	Reset()
	// Snapshot returns a copy of the current session.
	Snapshot() model.PaymentSession
	// Changed signals that the session mutated. The channel is buffered and
	// coalescing, so receivers re-read Snapshot after every wake.
	Changed() <-chan struct{}
}

type checkoutUC struct {
	mu      sync.Mutex
	sess    *model.PaymentSession
	attempt uint64        // bumped on every entry to Processing and on reset/path switch
	changed chan struct{} // coalesced change signal for observers

	catalog  *model.PlanCatalog
	gateway  adapter.Gateway
	verifier adapter.Verifier
	recorder adapter.ManualRecorder
	outcomes repository.OutcomeStore
	attempts repository.AttemptRepository
	log      *zerolog.Logger
}

// NewCheckoutSession constructs the orchestrator for one flow instance.
func NewCheckoutSession(
	catalog *model.PlanCatalog,
	gateway adapter.Gateway,
	verifier adapter.Verifier,
	recorder adapter.ManualRecorder,
	outcomes repository.OutcomeStore,
	attempts repository.AttemptRepository,
	logger *zerolog.Logger,
	businessID, businessSlug, customerEmail string,
) *checkoutUC {
	now := time.Now()
	return &checkoutUC{
		sess: &model.PaymentSession{
			ID:            ulid.Make().String(),
			BusinessID:    businessID,
			BusinessSlug:  businessSlug,
			CustomerEmail: customerEmail,
			State:         model.StateIdle,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		changed:  make(chan struct{}, 1),
		catalog:  catalog,
		gateway:  gateway,
		verifier: verifier,
		recorder: recorder,
		outcomes: outcomes,
		attempts: attempts,
		log:      logger,
	}
}

func (uc *checkoutUC) Pay(ctx context.Context, planID string) error {
	uc.mu.Lock()
	if uc.sess.State != model.StateIdle {
		uc.mu.Unlock()
		return domain.ErrSessionBusy
	}
	uc.sess.PlanID = planID

	if !uc.gateway.Configured() {
		// Nothing to contact: skip Processing entirely.
		uc.sess.Provider = model.ProviderManual
		uc.sess.State = model.StateManual
		uc.sess.UpdatedAt = time.Now()
		uc.mu.Unlock()
		uc.notify()
		metrics.IncCheckoutSession(string(model.ProviderManual))
		uc.log.Info().Str("session_id", uc.sess.ID).Str("plan_id", planID).
			Msg("gateway unconfigured, offering manual transfer")
		return nil
	}

	uc.sess.Provider = model.Provider(uc.gateway.Name())
	uc.attempt++
	att := uc.attempt
	uc.sess.State = model.StateProcessing
	uc.sess.Reference = model.NewReference(uc.sess.BusinessSlug, planID, time.Now())
	uc.sess.UpdatedAt = time.Now()
	snap := *uc.sess
	uc.mu.Unlock()
	uc.notify()

	metrics.IncCheckoutSession(string(snap.Provider))
	log := uc.log.With().Str("session_id", snap.ID).Str("reference", snap.Reference).
		Str("provider", string(snap.Provider)).Logger()

	plan, err := uc.catalog.Find(planID)
	if err != nil {
		uc.fail(att, err.Error())
		log.Warn().Str("plan_id", planID).Msg("plan not in catalog")
		return err
	}

	cfg, err := uc.gateway.BuildConfig(&snap, plan)
	if err != nil {
		uc.fail(att, err.Error())
		log.Warn().Err(err).Msg("checkout config rejected")
		return err
	}
	cfg.Pending = func(checkoutURL string) { uc.setCheckoutURL(att, checkoutURL) }

	uc.journal(ctx, &snap)

	out, err := uc.gateway.Initiate(ctx, cfg)
	if err != nil {
		// Only the caller closing the flow gets here; the session is about
		// to be discarded along with this error.
		return err
	}

	switch out.Kind {
	case adapter.OutcomeUnavailable:
		uc.toManual(att)
		log.Info().Msg("gateway unavailable, degrading to manual transfer")
		return nil
	case adapter.OutcomeCancelled:
		uc.cancelToIdle(att)
		log.Info().Msg("checkout cancelled by user")
		return nil
	case adapter.OutcomeConfirmed:
		return uc.verifyAndSettle(ctx, att, plan, out.Confirmation, snap.BusinessID, &log)
	default:
		uc.toManual(att)
		return nil
	}
}

func (uc *checkoutUC) verifyAndSettle(ctx context.Context, att uint64, plan *model.Plan, conf *adapter.Confirmation, businessID string, log *zerolog.Logger) error {
	// A reference that already settled replays its recorded outcome; the
	// trust boundary deduplicates server-side, this avoids the round trip.
	if rec, err := uc.outcomes.Get(ctx, conf.Reference); err == nil && rec != nil {
		log.Info().Str("state", string(rec.State)).Msg("reference already settled, replaying outcome")
		if rec.State == model.StateSuccess {
			uc.succeed(att, rec.Result)
			return nil
		}
		uc.fail(att, rec.Error)
		return &domain.VerificationError{Message: rec.Error}
	}

	start := time.Now()
	res, err := uc.verifier.Verify(ctx, adapter.VerifyRequest{
		TransactionID: conf.TransactionID,
		TxRef:         conf.Reference,
		Plan:          plan.ID,
		Provider:      conf.Provider,
		BusinessID:    businessID,
	})
	metrics.ObserveVerifyDuration(time.Since(start).Seconds())

	if err != nil {
		msg := genericVerifyFailure
		var ve *domain.VerificationError
		if errors.As(err, &ve) && ve.Message != "" {
			msg = ve.Message
		}
		uc.fail(att, msg)
		uc.record(ctx, conf.Reference, &model.SessionOutcome{State: model.StateFailed, Error: msg})
		log.Warn().Err(err).Msg("verification rejected")
		return &domain.VerificationError{Message: msg}
	}

	uc.succeed(att, res)
	uc.record(ctx, conf.Reference, &model.SessionOutcome{State: model.StateSuccess, Result: res})
	log.Info().Str("subscription_id", res.SubscriptionID).Msg("payment verified, subscription activated")
	return nil
}

func (uc *checkoutUC) SubmitManualTransfer(ctx context.Context) error {
	uc.mu.Lock()
	if uc.sess.State != model.StateManual {
		uc.mu.Unlock()
		return domain.ErrNotManual
	}
	uc.attempt++
	att := uc.attempt
	uc.sess.State = model.StateProcessing
	uc.sess.Reference = model.NewManualReference(uc.sess.BusinessSlug, time.Now())
	uc.sess.UpdatedAt = time.Now()
	snap := *uc.sess
	uc.mu.Unlock()
	uc.notify()

	log := uc.log.With().Str("session_id", snap.ID).Str("reference", snap.Reference).Logger()

	plan, err := uc.catalog.Find(snap.PlanID)
	if err != nil {
		uc.fail(att, err.Error())
		return err
	}

	uc.journal(ctx, &snap)

	req := adapter.ManualRequest{
		BusinessID: snap.BusinessID,
		Plan:       plan.ID,
		Reference:  snap.Reference,
		Message:    fmt.Sprintf("Manual bank transfer for the %s plan. Reference: %s", plan.Name, snap.Reference),
	}
	if err := uc.recorder.Record(ctx, req); err != nil {
		msg := "could not record your transfer, please try again"
		var re *domain.RecorderError
		if errors.As(err, &re) && re.Message != "" {
			msg = re.Message
		}
		uc.fail(att, msg)
		log.Warn().Err(err).Msg("manual transfer submission failed")
		return &domain.RecorderError{Message: msg}
	}

	// Acceptance means "request recorded"; activation happens out-of-band
	// once a human confirms the statement line.
	uc.succeed(att, &model.ActivationResult{
		PlanID: plan.ID,
		Status: "pending_review",
		Manual: true,
	})
	log.Info().Msg("manual transfer recorded, pending back-office review")
	return nil
}

func (uc *checkoutUC) PayManually() error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.sess.State != model.StateFailed {
		return domain.ErrNotManual
	}
	uc.attempt++
	uc.sess.State = model.StateManual
	uc.sess.Provider = model.ProviderManual
	uc.sess.Error = ""
	uc.sess.UpdatedAt = time.Now()
	uc.notify()
	return nil
}

func (uc *checkoutUC) Reset() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.attempt++
	uc.sess.PlanID = ""
	uc.sess.Provider = ""
	uc.sess.Reference = ""
	uc.sess.CheckoutURL = ""
	uc.sess.Error = ""
	uc.sess.Result = nil
	uc.sess.State = model.StateIdle
	uc.sess.UpdatedAt = time.Now()
	uc.notify()
}

func (uc *checkoutUC) Snapshot() model.PaymentSession {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	cp := *uc.sess
	if uc.sess.Result != nil {
		r := *uc.sess.Result
		cp.Result = &r
	}
	return cp
}

func (uc *checkoutUC) Changed() <-chan struct{} { return uc.changed }

// notify wakes Changed receivers; non-blocking so a slow observer never
// stalls a transition.
func (uc *checkoutUC) notify() {
	select {
	case uc.changed <- struct{}{}:
	default:
	}
}

// settle applies fn under the transition guard: the attempt must still be
// current and terminal states are sticky. Returns false when the signal is
// stale and was discarded.
func (uc *checkoutUC) settle(att uint64, fn func()) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if att != uc.attempt || uc.sess.State.Terminal() {
		return false
	}
	fn()
	uc.sess.UpdatedAt = time.Now()
	uc.notify()
	return true
}

// settleFrom is settle restricted to a single source state; used for the
// non-terminal exits out of Processing so a stale echo never moves a session
// that has already gone elsewhere.
func (uc *checkoutUC) settleFrom(att uint64, from model.SessionState, fn func()) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if att != uc.attempt || uc.sess.State != from {
		return false
	}
	fn()
	uc.sess.UpdatedAt = time.Now()
	uc.notify()
	return true
}

func (uc *checkoutUC) succeed(att uint64, res *model.ActivationResult) {
	if uc.settle(att, func() {
		uc.sess.State = model.StateSuccess
		uc.sess.Result = res
		uc.sess.Error = ""
	}) {
		metrics.IncCheckoutOutcome("success")
	}
}

func (uc *checkoutUC) fail(att uint64, msg string) {
	if uc.settle(att, func() {
		uc.sess.State = model.StateFailed
		uc.sess.Error = msg
		uc.sess.Result = nil
	}) {
		metrics.IncCheckoutOutcome("failed")
	}
}

func (uc *checkoutUC) toManual(att uint64) {
	if uc.settleFrom(att, model.StateProcessing, func() {
		uc.sess.State = model.StateManual
		uc.sess.Error = ""
	}) {
		metrics.IncCheckoutOutcome("manual_fallback")
	}
}

func (uc *checkoutUC) cancelToIdle(att uint64) {
	if uc.settleFrom(att, model.StateProcessing, func() {
		uc.sess.State = model.StateIdle
		uc.sess.Reference = ""
		uc.sess.CheckoutURL = ""
		uc.sess.Provider = ""
		uc.sess.PlanID = ""
	}) {
		metrics.IncCheckoutOutcome("cancelled")
	}
}

func (uc *checkoutUC) setCheckoutURL(att uint64, url string) {
	uc.settle(att, func() { uc.sess.CheckoutURL = url })
}

func (uc *checkoutUC) journal(ctx context.Context, snap *model.PaymentSession) {
	att := &model.PaymentAttempt{
		BusinessID: snap.BusinessID,
		PlanID:     snap.PlanID,
		Provider:   snap.Provider,
		Reference:  snap.Reference,
		State:      snap.State,
		CreatedAt:  time.Now(),
	}
	if err := uc.attempts.Save(ctx, att); err != nil {
		uc.log.Warn().Err(err).Str("reference", snap.Reference).Msg("attempt journal save failed")
	}
}

func (uc *checkoutUC) record(ctx context.Context, reference string, out *model.SessionOutcome) {
	if err := uc.outcomes.Put(ctx, reference, out); err != nil {
		uc.log.Warn().Err(err).Str("reference", reference).Msg("outcome store put failed")
	}
	if err := uc.attempts.MarkOutcome(ctx, reference, out.State, out.Error); err != nil {
		uc.log.Warn().Err(err).Str("reference", reference).Msg("attempt journal update failed")
	}
}
