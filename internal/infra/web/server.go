// File: internal/infra/web/server.go
package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/adapter"
	"github.com/dgeemedia/business-sub001/internal/infra/logging"
)

// Server is the HTTP surface the UI layer drives: start a checkout, observe
// the session, land the provider redirect, submit a manual transfer.
type Server struct {
	hub      *SessionHub
	resolver adapter.CheckoutResolver
	catalog  *model.PlanCatalog
	log      *zerolog.Logger
}

func NewServer(hub *SessionHub, resolver adapter.CheckoutResolver, catalog *model.PlanCatalog, logger *zerolog.Logger) *Server {
	return &Server{hub: hub, resolver: resolver, catalog: catalog, log: logger}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.handleListPlans)
		r.Post("/checkout", s.handleStartCheckout)
		r.Route("/checkout/{businessID}", func(r chi.Router) {
			r.Use(s.sessionContext)
			r.Get("/", s.handleGetSession)
			r.Post("/manual", s.handleManualTransfer)
			r.Post("/transfer-instead", s.handleTransferInstead)
			r.Post("/reset", s.handleReset)
			r.Delete("/", s.handleCloseFlow)
		})
	})

	r.Get("/payments/callback", s.handleProviderCallback)
	return r
}

// sessionContext stamps the business id onto the request context so handler
// logs carry it without re-threading.
func (s *Server) sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithBusinessID(r.Context(), chi.URLParam(r, "businessID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type planDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	DurationDays int    `json:"duration_days"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, _ *http.Request) {
	plans := s.catalog.List()
	out := make([]planDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, planDTO{ID: p.ID, Name: p.Name, Amount: p.Amount, Currency: p.Currency, DurationDays: p.DurationDays})
	}
	writeJSON(w, http.StatusOK, out)
}

type startCheckoutRequest struct {
	BusinessID    string `json:"business_id"`
	BusinessSlug  string `json:"business_slug"`
	CustomerEmail string `json:"customer_email"`
	PlanID        string `json:"plan_id"`
}

func (s *Server) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessID == "" || req.BusinessSlug == "" || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "business_id, business_slug and plan_id are required")
		return
	}
	uc := s.hub.Start(req.BusinessID, req.BusinessSlug, req.CustomerEmail, req.PlanID)

	// Wait briefly for the gateway to publish the checkout URL; afterwards
	// the UI observes the session through GET.
	deadline := time.After(200 * time.Millisecond)
	snap := uc.Snapshot()
wait:
	for snap.State == model.StateProcessing && snap.CheckoutURL == "" {
		select {
		case <-uc.Changed():
			snap = uc.Snapshot()
		case <-deadline:
			break wait
		case <-r.Context().Done():
			break wait
		}
	}
	writeJSON(w, http.StatusAccepted, sessionDTOFrom(snap))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	uc, ok := s.hub.Get(chi.URLParam(r, "businessID"))
	if !ok {
		writeError(w, http.StatusNotFound, "no live session")
		return
	}
	writeJSON(w, http.StatusOK, sessionDTOFrom(uc.Snapshot()))
}

func (s *Server) handleManualTransfer(w http.ResponseWriter, r *http.Request) {
	uc, ok := s.hub.Get(chi.URLParam(r, "businessID"))
	if !ok {
		writeError(w, http.StatusNotFound, "no live session")
		return
	}
	if err := uc.SubmitManualTransfer(r.Context()); err != nil {
		logging.With(r.Context(), s.log).Debug().Err(err).Msg("manual transfer rejected")
	}
	writeJSON(w, http.StatusOK, sessionDTOFrom(uc.Snapshot()))
}

func (s *Server) handleTransferInstead(w http.ResponseWriter, r *http.Request) {
	uc, ok := s.hub.Get(chi.URLParam(r, "businessID"))
	if !ok {
		writeError(w, http.StatusNotFound, "no live session")
		return
	}
	if err := uc.PayManually(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionDTOFrom(uc.Snapshot()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	uc, ok := s.hub.Get(chi.URLParam(r, "businessID"))
	if !ok {
		writeError(w, http.StatusNotFound, "no live session")
		return
	}
	uc.Reset()
	writeJSON(w, http.StatusOK, sessionDTOFrom(uc.Snapshot()))
}

func (s *Server) handleCloseFlow(w http.ResponseWriter, r *http.Request) {
	s.hub.Close(chi.URLParam(r, "businessID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleProviderCallback lands the hosted checkout redirect. Flutterwave
// sends ?status=successful&tx_ref=..&transaction_id=..; Paystack sends
// ?reference=.. (success only; closing the widget never redirects).
func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := q.Get("tx_ref")
	if ref == "" {
		ref = q.Get("reference")
	}
	if ref == "" {
		s.renderCallback(w, http.StatusBadRequest, false, "missing payment reference")
		return
	}
	log := logging.With(logging.WithReference(r.Context(), ref), s.log)

	status := q.Get("status")
	switch status {
	case "cancelled", "failed":
		if !s.resolver.AbortCheckout(ref) {
			log.Info().Msg("stale abort signal dropped")
		}
		s.renderCallback(w, http.StatusOK, false, "payment was not completed")
		return
	}

	txID := q.Get("transaction_id")
	if txID == "" {
		txID = ref
	}
	if !s.resolver.CompleteCheckout(ref, txID) {
		log.Info().Msg("stale confirmation dropped")
		s.renderCallback(w, http.StatusOK, false, "this payment session is no longer open")
		return
	}
	s.renderCallback(w, http.StatusOK, true, "payment received, verification in progress. You can return to the app.")
}

type sessionDTO struct {
	ID          string                  `json:"id"`
	BusinessID  string                  `json:"business_id"`
	PlanID      string                  `json:"plan_id,omitempty"`
	Provider    string                  `json:"provider,omitempty"`
	Reference   string                  `json:"reference,omitempty"`
	State       string                  `json:"state"`
	CheckoutURL string                  `json:"checkout_url,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Result      *model.ActivationResult `json:"result,omitempty"`
}

func sessionDTOFrom(s model.PaymentSession) sessionDTO {
	return sessionDTO{
		ID:          s.ID,
		BusinessID:  s.BusinessID,
		PlanID:      s.PlanID,
		Provider:    string(s.Provider),
		Reference:   s.Reference,
		State:       string(s.State),
		CheckoutURL: s.CheckoutURL,
		Error:       s.Error,
		Result:      s.Result,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

var callbackPage = template.Must(template.New("cb").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Payment {{if .OK}}Received{{else}}Result{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
</style>
</head>
<body>
<div class="card">
<h1 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}Payment received{{else}}Payment not completed{{end}}</h1>
<p>{{.Message}}</p>
</div>
</body>
</html>`))

func (s *Server) renderCallback(w http.ResponseWriter, code int, ok bool, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = callbackPage.Execute(w, struct {
		OK      bool
		Message string
	}{OK: ok, Message: msg})
}
