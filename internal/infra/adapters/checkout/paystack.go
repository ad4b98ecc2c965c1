// File: internal/infra/adapters/checkout/paystack.go
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgeemedia/business-sub001/internal/domain"
	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/adapter"
)

var (
	_ adapter.Gateway          = (*PaystackGateway)(nil)
	_ adapter.CheckoutResolver = (*PaystackGateway)(nil)
)

type PaystackConfig struct {
	PublicKey        string
	SecretKey        string
	APIBase          string
	ScriptURL        string
	BootstrapTimeout time.Duration
}

type pstSDK struct {
	base   string
	secret string
	client *http.Client
}

// PaystackGateway implements adapter.Gateway over Paystack's initialize +
// hosted authorization page flow.
type PaystackGateway struct {
	publicKey string
	cfg       PaystackConfig
	boot      *bootstrap[*pstSDK]
	pending   *pendingSet
	log       *zerolog.Logger
}

func NewPaystackGateway(cfg PaystackConfig, logger *zerolog.Logger) *PaystackGateway {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.paystack.co"
	}
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = "https://js.paystack.co/v1/inline.js"
	}
	client := &http.Client{Timeout: 15 * time.Second}
	g := &PaystackGateway{
		publicKey: cfg.PublicKey,
		cfg:       cfg,
		pending:   newPendingSet(),
		log:       logger,
	}
	g.boot = newBootstrap(cfg.BootstrapTimeout, func(ctx context.Context) (*pstSDK, error) {
		if err := fetchScript(ctx, client, cfg.ScriptURL); err != nil {
			return nil, fmt.Errorf("paystack inline script: %w", err)
		}
		return &pstSDK{base: cfg.APIBase, secret: cfg.SecretKey, client: client}, nil
	})
	return g
}

func (g *PaystackGateway) Name() string { return string(model.ProviderPaystack) }

func (g *PaystackGateway) Configured() bool { return credentialPresent(g.publicKey) }

func (g *PaystackGateway) BuildConfig(sess *model.PaymentSession, plan *model.Plan) (adapter.CheckoutConfig, error) {
	if plan.IsZero() {
		return adapter.CheckoutConfig{}, domain.ErrInvalidPlan
	}
	return adapter.CheckoutConfig{
		Provider:      model.ProviderPaystack,
		PublicKey:     g.publicKey,
		Reference:     sess.Reference,
		Amount:        plan.Amount,
		Currency:      plan.Currency,
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		BusinessID:    sess.BusinessID,
		CustomerEmail: sess.CustomerEmail,
	}, nil
}

func (g *PaystackGateway) Initiate(ctx context.Context, cfg adapter.CheckoutConfig) (adapter.Outcome, error) {
	sdk, err := g.boot.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return adapter.Outcome{}, ctx.Err()
		}
		g.log.Warn().Err(err).Msg("paystack bootstrap failed")
		return adapter.Outcome{Kind: adapter.OutcomeUnavailable}, nil
	}

	res := newResolver()
	g.pending.add(cfg.Reference, res)
	defer g.pending.remove(cfg.Reference)

	link, err := sdk.initialize(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return adapter.Outcome{}, ctx.Err()
		}
		g.log.Warn().Err(err).Str("reference", cfg.Reference).Msg("paystack initialize failed")
		return adapter.Outcome{Kind: adapter.OutcomeUnavailable}, nil
	}
	if cfg.Pending != nil {
		cfg.Pending(link)
	}
	g.log.Info().Str("reference", cfg.Reference).Msg("paystack checkout opened")

	select {
	case out := <-res.outcome():
		return out, nil
	case <-ctx.Done():
		return adapter.Outcome{}, ctx.Err()
	}
}

func (g *PaystackGateway) CompleteCheckout(reference, transactionID string) bool {
	return g.pending.complete(reference, transactionID, model.ProviderPaystack)
}

func (g *PaystackGateway) AbortCheckout(reference string) bool {
	return g.pending.abort(reference)
}

// initialize calls POST /transaction/initialize and returns the hosted
// authorization URL. Paystack amounts are in minor units.
func (s *pstSDK) initialize(ctx context.Context, cfg adapter.CheckoutConfig) (string, error) {
	payload := map[string]any{
		"email":     cfg.CustomerEmail,
		"amount":    cfg.Amount * 100,
		"currency":  cfg.Currency,
		"reference": cfg.Reference,
		"metadata": map[string]any{
			"business_id": cfg.BusinessID,
			"plan_id":     cfg.PlanID,
			"plan_name":   cfg.PlanName,
		},
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/transaction/initialize", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.secret)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		if out.Message != "" {
			return "", fmt.Errorf("paystack: %s", out.Message)
		}
		return "", errors.New("paystack initialize rejected")
	}
	return out.Data.AuthorizationURL, nil
}
