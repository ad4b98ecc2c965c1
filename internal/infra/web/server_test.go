//go:build !integration

package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/infra/web"
	"github.com/dgeemedia/business-sub001/internal/usecase"
)

// fakeFlow is a scripted CheckoutUseCase double; Pay parks until the ctx is
// cancelled so the hub sees a long-lived flow.
type fakeFlow struct {
	mu      sync.Mutex
	sess    model.PaymentSession
	changed chan struct{}

	urlDelay   time.Duration
	manualErr  error
	manualDone bool
	resets     int
}

func newFakeFlow(businessID string) *fakeFlow {
	return &fakeFlow{
		changed: make(chan struct{}, 1),
		sess: model.PaymentSession{
			ID:         "sess-1",
			BusinessID: businessID,
			State:      model.StateProcessing,
			PlanID:     "monthly",
			Reference:  "acme-monthly-1700000000000",
		},
	}
}

func (f *fakeFlow) Pay(ctx context.Context, planID string) error {
	if f.urlDelay > 0 {
		time.Sleep(f.urlDelay)
	}
	f.mu.Lock()
	f.sess.CheckoutURL = "https://checkout.test/pay"
	f.mu.Unlock()
	f.notify()
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeFlow) Changed() <-chan struct{} { return f.changed }

func (f *fakeFlow) notify() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

func (f *fakeFlow) SubmitManualTransfer(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.manualErr != nil {
		return f.manualErr
	}
	f.manualDone = true
	f.sess.State = model.StateSuccess
	return nil
}

func (f *fakeFlow) PayManually() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess.State != model.StateFailed {
		return context.Canceled
	}
	f.sess.State = model.StateManual
	return nil
}

func (f *fakeFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.sess.State = model.StateIdle
}

func (f *fakeFlow) Snapshot() model.PaymentSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

// fakeResolver records which redirect signals reached it and whether they
// landed on a live checkout.
type fakeResolver struct {
	mu        sync.Mutex
	live      map[string]bool
	completed []string
	aborted   []string
}

func (r *fakeResolver) CompleteCheckout(ref, txID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, ref+"/"+txID)
	return r.live[ref]
}

func (r *fakeResolver) AbortCheckout(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = append(r.aborted, ref)
	return r.live[ref]
}

func testServer(t *testing.T) (*httptest.Server, *fakeFlow, *fakeResolver) {
	t.Helper()
	l := zerolog.Nop()

	flow := newFakeFlow("biz-1")
	hub := web.NewSessionHub(func(businessID, slug, email string) usecase.CheckoutUseCase {
		return flow
	}, &l)

	monthly, _ := model.NewPlan("monthly", "Monthly", 5000, "NGN", 30)
	catalog := model.NewPlanCatalog([]*model.Plan{monthly})

	res := &fakeResolver{live: map[string]bool{"acme-monthly-1700000000000": true}}
	srv := httptest.NewServer(web.NewServer(hub, res, catalog, &l).Router())
	t.Cleanup(srv.Close)
	return srv, flow, res
}

func TestServerCheckoutFlow(t *testing.T) {
	srv, flow, _ := testServer(t)

	t.Run("plans are listed from the catalog", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/plans")
		if err != nil {
			t.Fatalf("GET /plans: %v", err)
		}
		defer resp.Body.Close()
		var plans []map[string]any
		json.NewDecoder(resp.Body).Decode(&plans)
		if len(plans) != 1 || plans[0]["id"] != "monthly" {
			t.Errorf("unexpected plans %v", plans)
		}
	})

	t.Run("starting a checkout returns the session with its checkout url", func(t *testing.T) {
		body := strings.NewReader(`{"business_id":"biz-1","business_slug":"acme-stores","plan_id":"monthly"}`)
		resp, err := http.Post(srv.URL+"/api/v1/checkout", "application/json", body)
		if err != nil {
			t.Fatalf("POST /checkout: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var dto map[string]any
		json.NewDecoder(resp.Body).Decode(&dto)
		if dto["state"] != "processing" || dto["checkout_url"] != "https://checkout.test/pay" {
			t.Errorf("unexpected session %v", dto)
		}
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/checkout", "application/json", strings.NewReader(`{"plan_id":"monthly"}`))
		if err != nil {
			t.Fatalf("POST /checkout: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("session is observable while the flow runs", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/checkout/biz-1/")
		if err != nil {
			t.Fatalf("GET session: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("unknown business has no session", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/checkout/nobody/")
		if err != nil {
			t.Fatalf("GET session: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("transfer-instead conflicts outside failed", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/checkout/biz-1/transfer-instead", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST transfer-instead: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("reset reaches the session", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/checkout/biz-1/reset", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST reset: %v", err)
		}
		resp.Body.Close()
		flow.mu.Lock()
		resets := flow.resets
		flow.mu.Unlock()
		if resets != 1 {
			t.Errorf("resets = %d, want 1", resets)
		}
	})

	t.Run("closing the flow removes the session", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/checkout/biz-1/", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE flow: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		check, err := http.Get(srv.URL + "/api/v1/checkout/biz-1/")
		if err != nil {
			t.Fatalf("GET session: %v", err)
		}
		check.Body.Close()
		if check.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404 after close", check.StatusCode)
		}
	})
}

func TestServerProviderCallback(t *testing.T) {
	t.Run("successful redirect completes the checkout", func(t *testing.T) {
		srv, _, res := testServer(t)
		resp, err := http.Get(srv.URL + "/payments/callback?status=successful&tx_ref=acme-monthly-1700000000000&transaction_id=81930")
		if err != nil {
			t.Fatalf("GET callback: %v", err)
		}
		resp.Body.Close()
		res.mu.Lock()
		defer res.mu.Unlock()
		if len(res.completed) != 1 || res.completed[0] != "acme-monthly-1700000000000/81930" {
			t.Errorf("completed = %v", res.completed)
		}
	})

	t.Run("cancelled redirect aborts the checkout", func(t *testing.T) {
		srv, _, res := testServer(t)
		resp, err := http.Get(srv.URL + "/payments/callback?status=cancelled&tx_ref=acme-monthly-1700000000000")
		if err != nil {
			t.Fatalf("GET callback: %v", err)
		}
		resp.Body.Close()
		res.mu.Lock()
		defer res.mu.Unlock()
		if len(res.aborted) != 1 || len(res.completed) != 0 {
			t.Errorf("aborted = %v, completed = %v", res.aborted, res.completed)
		}
	})

	t.Run("paystack-style reference falls back to the reference as tx id", func(t *testing.T) {
		srv, _, res := testServer(t)
		resp, err := http.Get(srv.URL + "/payments/callback?reference=acme-monthly-1700000000000")
		if err != nil {
			t.Fatalf("GET callback: %v", err)
		}
		resp.Body.Close()
		res.mu.Lock()
		defer res.mu.Unlock()
		if len(res.completed) != 1 || res.completed[0] != "acme-monthly-1700000000000/acme-monthly-1700000000000" {
			t.Errorf("completed = %v", res.completed)
		}
	})

	t.Run("missing reference is a bad request", func(t *testing.T) {
		srv, _, _ := testServer(t)
		resp, err := http.Get(srv.URL + "/payments/callback")
		if err != nil {
			t.Fatalf("GET callback: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("stale confirmation still renders a page", func(t *testing.T) {
		srv, _, res := testServer(t)
		res.mu.Lock()
		res.live = map[string]bool{}
		res.mu.Unlock()
		resp, err := http.Get(srv.URL + "/payments/callback?status=successful&tx_ref=old-ref&transaction_id=1")
		if err != nil {
			t.Fatalf("GET callback: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200 for a stale signal", resp.StatusCode)
		}
	})
}

// A checkout URL published shortly after start still lands in the start
// response through the change notification.
func TestServerStartCheckoutPicksUpLateURL(t *testing.T) {
	l := zerolog.Nop()
	flow := newFakeFlow("biz-1")
	flow.urlDelay = 60 * time.Millisecond
	hub := web.NewSessionHub(func(businessID, slug, email string) usecase.CheckoutUseCase {
		return flow
	}, &l)
	monthly, _ := model.NewPlan("monthly", "Monthly", 5000, "NGN", 30)
	catalog := model.NewPlanCatalog([]*model.Plan{monthly})
	srv := httptest.NewServer(web.NewServer(hub, &fakeResolver{live: map[string]bool{}}, catalog, &l).Router())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { hub.Close("biz-1") })

	body := strings.NewReader(`{"business_id":"biz-1","business_slug":"acme-stores","plan_id":"monthly"}`)
	resp, err := http.Post(srv.URL+"/api/v1/checkout", "application/json", body)
	if err != nil {
		t.Fatalf("POST /checkout: %v", err)
	}
	defer resp.Body.Close()

	var dto map[string]any
	json.NewDecoder(resp.Body).Decode(&dto)
	if dto["checkout_url"] != "https://checkout.test/pay" {
		t.Errorf("expected the late checkout url in the start response, got %v", dto["checkout_url"])
	}
}

// The hub replaces a business's previous flow when a new one starts.
func TestSessionHubReplacesFlow(t *testing.T) {
	l := zerolog.Nop()
	var made int
	var mu sync.Mutex
	flows := []*fakeFlow{}
	hub := web.NewSessionHub(func(businessID, slug, email string) usecase.CheckoutUseCase {
		mu.Lock()
		defer mu.Unlock()
		made++
		f := newFakeFlow(businessID)
		flows = append(flows, f)
		return f
	}, &l)

	first := hub.Start("biz-1", "acme-stores", "", "monthly")
	second := hub.Start("biz-1", "acme-stores", "", "yearly")
	if first == second {
		t.Fatal("expected a fresh flow per start")
	}

	got, ok := hub.Get("biz-1")
	if !ok || got != second {
		t.Error("expected the hub to serve the latest flow")
	}
	mu.Lock()
	if made != 2 {
		t.Errorf("factory calls = %d, want 2", made)
	}
	mu.Unlock()

	// Let the parked Pay goroutines observe their cancellation.
	hub.Close("biz-1")
	time.Sleep(10 * time.Millisecond)
}
