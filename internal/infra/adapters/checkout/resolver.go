// File: internal/infra/adapters/checkout/resolver.go
package checkout

import (
	"sync"

	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/adapter"
)

// resolver is a single-resolution future for one initiated checkout: the
// first outcome wins, later resolutions are discarded. Guards against a
// success callback firing after a close callback or vice versa.
type resolver struct {
	once sync.Once
	ch   chan adapter.Outcome
}

func newResolver() *resolver {
	return &resolver{ch: make(chan adapter.Outcome, 1)}
}

// resolve delivers the outcome; returns false when one already won.
func (r *resolver) resolve(out adapter.Outcome) bool {
	fired := false
	r.once.Do(func() {
		r.ch <- out
		fired = true
	})
	return fired
}

func (r *resolver) outcome() <-chan adapter.Outcome { return r.ch }

// pendingSet tracks in-flight checkouts by reference so the provider's
// redirect can be routed back to the session that initiated it. Signals for
// unknown references (abandoned or already-settled sessions) are dropped.
type pendingSet struct {
	mu    sync.Mutex
	byRef map[string]*resolver
}

func newPendingSet() *pendingSet {
	return &pendingSet{byRef: make(map[string]*resolver)}
}

func (p *pendingSet) add(ref string, r *resolver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byRef[ref] = r
}

func (p *pendingSet) remove(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byRef, ref)
}

func (p *pendingSet) complete(ref, transactionID string, provider model.Provider) bool {
	p.mu.Lock()
	r, ok := p.byRef[ref]
	p.mu.Unlock()
	if !ok {
		return false
	}
	return r.resolve(adapter.Outcome{
		Kind: adapter.OutcomeConfirmed,
		Confirmation: &adapter.Confirmation{
			TransactionID: transactionID,
			Reference:     ref,
			Provider:      provider,
		},
	})
}

func (p *pendingSet) abort(ref string) bool {
	p.mu.Lock()
	r, ok := p.byRef[ref]
	p.mu.Unlock()
	if !ok {
		return false
	}
	return r.resolve(adapter.Outcome{Kind: adapter.OutcomeCancelled})
}
