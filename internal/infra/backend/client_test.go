//go:build !integration

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/dgeemedia/business-sub001/internal/domain"
	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/adapter"
)

const testSecret = "test-signing-secret"

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	l := zerolog.Nop()
	return NewClient(srv.URL, testSecret, 5*time.Second, &l)
}

func TestClientVerify(t *testing.T) {
	ctx := context.Background()
	req := adapter.VerifyRequest{
		TransactionID: "81930",
		TxRef:         "acme-monthly-1700000000000",
		Plan:          "monthly",
		Provider:      model.ProviderFlutterwave,
		BusinessID:    "biz-1",
	}

	t.Run("posts the confirmation and returns the activation", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody map[string]any
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(map[string]any{
				"subscription_id": "sub-42",
				"plan_id":         "monthly",
				"status":          "active",
			})
		}))

		res, err := c.Verify(ctx, req)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if res.SubscriptionID != "sub-42" || res.Status != "active" {
			t.Errorf("unexpected result %+v", res)
		}
		if gotPath != "/api/v1/payments/verify" {
			t.Errorf("path = %q", gotPath)
		}
		for k, want := range map[string]string{
			"transaction_id": "81930",
			"tx_ref":         "acme-monthly-1700000000000",
			"plan":           "monthly",
			"provider":       "flutterwave",
			"business_id":    "biz-1",
		} {
			if got, _ := gotBody[k].(string); got != want {
				t.Errorf("payload %s = %q, want %q", k, got, want)
			}
		}

		raw := strings.TrimPrefix(gotAuth, "Bearer ")
		if raw == gotAuth {
			t.Fatalf("Authorization = %q, want a bearer token", gotAuth)
		}
		tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return []byte(testSecret), nil })
		if err != nil || !tok.Valid {
			t.Fatalf("token did not verify: %v", err)
		}
		if sub, _ := tok.Claims.GetSubject(); sub != "biz-1" {
			t.Errorf("token sub = %q", sub)
		}
	})

	t.Run("missing status defaults to active", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"subscription_id": "sub-42"})
		}))
		res, err := c.Verify(ctx, req)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if res.Status != "active" {
			t.Errorf("status = %q, want active", res.Status)
		}
	})

	t.Run("backend rejection surfaces the envelope message", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]any{"message": "transaction was not successful"})
		}))

		_, err := c.Verify(ctx, req)
		var verr *domain.VerificationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected VerificationError, got %v", err)
		}
		if verr.Message != "transaction was not successful" {
			t.Errorf("message = %q", verr.Message)
		}
	})

	t.Run("undecodable success body never leaks internals", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		_, err := c.Verify(ctx, req)
		var verr *domain.VerificationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected VerificationError, got %v", err)
		}
		if verr.Message != "unexpected response from the payment server" {
			t.Errorf("message = %q", verr.Message)
		}
	})

	t.Run("transport failure never leaks internals", func(t *testing.T) {
		l := zerolog.Nop()
		c := NewClient("http://127.0.0.1:1", testSecret, 500*time.Millisecond, &l)

		_, err := c.Verify(ctx, req)
		var verr *domain.VerificationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected VerificationError, got %v", err)
		}
		if verr.Message != "could not reach the payment server" {
			t.Errorf("message = %q", verr.Message)
		}
	})
}

func TestClientRecord(t *testing.T) {
	ctx := context.Background()
	req := adapter.ManualRequest{
		BusinessID: "biz-1",
		Plan:       "monthly",
		Reference:  "MANUAL-acme-stores-1700000000000",
		Message:    "Manual bank transfer for the Monthly plan. Reference: MANUAL-acme-stores-1700000000000",
	}

	t.Run("posts a pending renewal request", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]any
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusCreated)
		}))

		if err := c.Record(ctx, req); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if gotPath != "/api/v1/payments/manual" {
			t.Errorf("path = %q", gotPath)
		}
		if typ, _ := gotBody["type"].(string); typ != "subscription_renewal" {
			t.Errorf("type = %q", typ)
		}
		if msg, _ := gotBody["message"].(string); !strings.Contains(msg, "MANUAL-acme-stores-") {
			t.Errorf("message %q does not carry the manual reference", msg)
		}
	})

	t.Run("rejection surfaces as a recorder error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{"error": "a pending request already exists"})
		}))

		err := c.Record(ctx, req)
		var rerr *domain.RecorderError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected RecorderError, got %v", err)
		}
		if rerr.Message != "a pending request already exists" {
			t.Errorf("message = %q", rerr.Message)
		}
	})
}
