// File: internal/infra/adapters/checkout/flutterwave.go
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
	_ adapter.Gateway          = (*FlutterwaveGateway)(nil)
	_ adapter.CheckoutResolver = (*FlutterwaveGateway)(nil)
)

// FlutterwaveConfig carries credentials and endpoint overrides (tests point
// these at a local server; production leaves them empty for the defaults).
type FlutterwaveConfig struct {
	PublicKey        string
	SecretKey        string
	APIBase          string
	ScriptURL        string
	BootstrapTimeout time.Duration
}

// flwSDK is the process-wide handle to Flutterwave's hosted checkout,
// produced once by the bootstrap loader and reused by later sessions.
type flwSDK struct {
	base   string
	secret string
	client *http.Client
}

// FlutterwaveGateway implements adapter.Gateway over Flutterwave standard
// (hosted) checkout.
type FlutterwaveGateway struct {
	publicKey string
	cfg       FlutterwaveConfig
	boot      *bootstrap[*flwSDK]
	pending   *pendingSet
	log       *zerolog.Logger
}

func NewFlutterwaveGateway(cfg FlutterwaveConfig, logger *zerolog.Logger) *FlutterwaveGateway {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.flutterwave.com/v3"
	}
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = "https://checkout.flutterwave.com/v3.js"
	}
	client := &http.Client{Timeout: 15 * time.Second}
	g := &FlutterwaveGateway{
		publicKey: cfg.PublicKey,
		cfg:       cfg,
		pending:   newPendingSet(),
		log:       logger,
	}
	g.boot = newBootstrap(cfg.BootstrapTimeout, func(ctx context.Context) (*flwSDK, error) {
		if err := fetchScript(ctx, client, cfg.ScriptURL); err != nil {
			return nil, fmt.Errorf("flutterwave checkout script: %w", err)
		}
		return &flwSDK{base: cfg.APIBase, secret: cfg.SecretKey, client: client}, nil
	})
	return g
}

func (g *FlutterwaveGateway) Name() string { return string(model.ProviderFlutterwave) }

func (g *FlutterwaveGateway) Configured() bool { return credentialPresent(g.publicKey) }

func (g *FlutterwaveGateway) BuildConfig(sess *model.PaymentSession, plan *model.Plan) (adapter.CheckoutConfig, error) {
	if plan.IsZero() {
		return adapter.CheckoutConfig{}, domain.ErrInvalidPlan
	}
	return adapter.CheckoutConfig{
		Provider:      model.ProviderFlutterwave,
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

func (g *FlutterwaveGateway) Initiate(ctx context.Context, cfg adapter.CheckoutConfig) (adapter.Outcome, error) {
	sdk, err := g.boot.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return adapter.Outcome{}, ctx.Err()
		}
		g.log.Warn().Err(err).Msg("flutterwave bootstrap failed")
		return adapter.Outcome{Kind: adapter.OutcomeUnavailable}, nil
	}

	res := newResolver()
	g.pending.add(cfg.Reference, res)
	defer g.pending.remove(cfg.Reference)

	link, err := sdk.createPayment(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return adapter.Outcome{}, ctx.Err()
		}
		g.log.Warn().Err(err).Str("tx_ref", cfg.Reference).Msg("flutterwave payment create failed")
		return adapter.Outcome{Kind: adapter.OutcomeUnavailable}, nil
	}
	if cfg.Pending != nil {
		cfg.Pending(link)
	}
	g.log.Info().Str("tx_ref", cfg.Reference).Msg("flutterwave checkout opened")

	select {
	case out := <-res.outcome():
		return out, nil
	case <-ctx.Done():
		return adapter.Outcome{}, ctx.Err()
	}
}

// CompleteCheckout resolves a pending checkout from the provider redirect.
func (g *FlutterwaveGateway) CompleteCheckout(reference, transactionID string) bool {
	return g.pending.complete(reference, transactionID, model.ProviderFlutterwave)
}

// AbortCheckout resolves a pending checkout as user-cancelled.
func (g *FlutterwaveGateway) AbortCheckout(reference string) bool {
	return g.pending.abort(reference)
}

// createPayment calls POST /payments and returns the hosted checkout link.
func (s *flwSDK) createPayment(ctx context.Context, cfg adapter.CheckoutConfig) (string, error) {
	payload := map[string]any{
		"tx_ref":   cfg.Reference,
		"amount":   cfg.Amount,
		"currency": cfg.Currency,
		"customer": map[string]any{"email": cfg.CustomerEmail},
		"customizations": map[string]any{
			"title": fmt.Sprintf("%s plan subscription", cfg.PlanName),
		},
		"meta": map[string]any{
			"business_id": cfg.BusinessID,
			"plan_id":     cfg.PlanID,
		},
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/payments", bytes.NewReader(b))
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
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Status != "success" || out.Data.Link == "" {
		if out.Message != "" {
			return "", fmt.Errorf("flutterwave: %s", out.Message)
		}
		return "", errors.New("flutterwave payment create rejected")
	}
	return out.Data.Link, nil
}

// fetchScript pulls the provider's checkout bootstrap once; a non-200 means
// the capability is unavailable.
func fetchScript(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("script fetch http %d", resp.StatusCode)
	}
	return nil
}
