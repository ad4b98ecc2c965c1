// File: internal/infra/web/hub.go
package web

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dgeemedia/business-sub001/internal/infra/logging"
	"github.com/dgeemedia/business-sub001/internal/usecase"
)

// SessionFactory builds a fresh orchestrator for one flow instance.
type SessionFactory func(businessID, businessSlug, customerEmail string) usecase.CheckoutUseCase

type flowEntry struct {
	uc     usecase.CheckoutUseCase
	cancel context.CancelFunc
}

// SessionHub keeps exactly one live payment session per business flow.
// Starting a new flow discards the previous session; its in-flight checkout
// is cancelled and any late signals for it are stale by construction.
type SessionHub struct {
	mu      sync.Mutex
	flows   map[string]*flowEntry
	factory SessionFactory
	log     *zerolog.Logger
}

func NewSessionHub(factory SessionFactory, logger *zerolog.Logger) *SessionHub {
	return &SessionHub{flows: make(map[string]*flowEntry), factory: factory, log: logger}
}

// Start creates a new session for the business and launches the gateway path
// for planID. The Pay call blocks on the hosted checkout, so it runs on its
// own goroutine; callers observe progress through Get.
func (h *SessionHub) Start(businessID, businessSlug, customerEmail, planID string) usecase.CheckoutUseCase {
	h.mu.Lock()
	if old, ok := h.flows[businessID]; ok {
		old.cancel()
	}
	uc := h.factory(businessID, businessSlug, customerEmail)
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.WithBusinessID(ctx, businessID)
	ctx = logging.WithSessID(ctx, uc.Snapshot().ID)
	h.flows[businessID] = &flowEntry{uc: uc, cancel: cancel}
	h.mu.Unlock()

	go func() {
		if err := uc.Pay(ctx, planID); err != nil {
			logging.With(ctx, h.log).Debug().Err(err).Msg("checkout ended with error")
		}
	}()
	return uc
}

// Get returns the live session for the business, if any.
func (h *SessionHub) Get(businessID string) (usecase.CheckoutUseCase, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.flows[businessID]
	if !ok {
		return nil, false
	}
	return e.uc, true
}

// Close discards the session for the business, cancelling any in-flight
// checkout.
func (h *SessionHub) Close(businessID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.flows[businessID]; ok {
		e.cancel()
		delete(h.flows, businessID)
	}
}
