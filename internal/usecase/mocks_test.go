//go:build !integration

package usecase_test

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dgeemedia/business-sub001/internal/domain"
	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testCatalog() *model.PlanCatalog {
	monthly, _ := model.NewPlan("monthly", "Monthly", 5000, "NGN", 30)
	yearly, _ := model.NewPlan("yearly", "Yearly", 50000, "NGN", 365)
	return model.NewPlanCatalog([]*model.Plan{monthly, yearly})
}

// MockGateway is a function-field gateway double. Zero value: configured,
// builds a passthrough config, confirms immediately echoing the reference.
type MockGateway struct {
	mu            sync.Mutex
	Unconfigured  bool
	NameVal       string
	BuildFunc     func(sess *model.PaymentSession, plan *model.Plan) (adapter.CheckoutConfig, error)
	InitiateFunc  func(ctx context.Context, cfg adapter.CheckoutConfig) (adapter.Outcome, error)
	initiateCalls int
}

func (m *MockGateway) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return string(model.ProviderFlutterwave)
}

func (m *MockGateway) Configured() bool { return !m.Unconfigured }

func (m *MockGateway) BuildConfig(sess *model.PaymentSession, plan *model.Plan) (adapter.CheckoutConfig, error) {
	if m.BuildFunc != nil {
		return m.BuildFunc(sess, plan)
	}
	if plan.IsZero() {
		return adapter.CheckoutConfig{}, domain.ErrInvalidPlan
	}
	return adapter.CheckoutConfig{
		Provider:  model.Provider(m.Name()),
		Reference: sess.Reference,
		Amount:    plan.Amount,
		Currency:  plan.Currency,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
	}, nil
}

func (m *MockGateway) Initiate(ctx context.Context, cfg adapter.CheckoutConfig) (adapter.Outcome, error) {
	m.mu.Lock()
	m.initiateCalls++
	m.mu.Unlock()
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, cfg)
	}
	return confirmed(cfg.Reference), nil
}

func (m *MockGateway) InitiateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initiateCalls
}

func confirmed(reference string) adapter.Outcome {
	return adapter.Outcome{
		Kind: adapter.OutcomeConfirmed,
		Confirmation: &adapter.Confirmation{
			TransactionID: "tx-" + reference,
			Reference:     reference,
			Provider:      model.ProviderFlutterwave,
		},
	}
}

type MockVerifier struct {
	mu         sync.Mutex
	VerifyFunc func(ctx context.Context, req adapter.VerifyRequest) (*model.ActivationResult, error)
	calls      []adapter.VerifyRequest
}

func (m *MockVerifier) Verify(ctx context.Context, req adapter.VerifyRequest) (*model.ActivationResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, req)
	}
	return &model.ActivationResult{SubscriptionID: "sub-1", PlanID: req.Plan, Status: "active"}, nil
}

func (m *MockVerifier) Calls() []adapter.VerifyRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adapter.VerifyRequest(nil), m.calls...)
}

type MockRecorder struct {
	mu         sync.Mutex
	RecordFunc func(ctx context.Context, req adapter.ManualRequest) error
	calls      []adapter.ManualRequest
}

func (m *MockRecorder) Record(ctx context.Context, req adapter.ManualRequest) error {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, req)
	}
	return nil
}

func (m *MockRecorder) Calls() []adapter.ManualRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adapter.ManualRequest(nil), m.calls...)
}

// memOutcomeStore is a small in-memory OutcomeStore for unit tests.
type memOutcomeStore struct {
	mu    sync.Mutex
	store map[string]*model.SessionOutcome
}

func newMemOutcomeStore() *memOutcomeStore {
	return &memOutcomeStore{store: make(map[string]*model.SessionOutcome)}
}

func (s *memOutcomeStore) Get(ctx context.Context, reference string) (*model.SessionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.store[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *out
	return &cp, nil
}

func (s *memOutcomeStore) Put(ctx context.Context, reference string, out *model.SessionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *out
	s.store[reference] = &cp
	return nil
}

// memAttemptRepo records journal writes so tests can assert on them.
type memAttemptRepo struct {
	mu       sync.Mutex
	saved    []*model.PaymentAttempt
	outcomes map[string]model.SessionState
}

func newMemAttemptRepo() *memAttemptRepo {
	return &memAttemptRepo{outcomes: make(map[string]model.SessionState)}
}

func (r *memAttemptRepo) Save(ctx context.Context, att *model.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *att
	r.saved = append(r.saved, &cp)
	return nil
}

func (r *memAttemptRepo) MarkOutcome(ctx context.Context, reference string, state model.SessionState, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[reference] = state
	return nil
}
