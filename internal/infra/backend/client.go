// File: internal/infra/backend/client.go
// Package backend is the HTTP client for the merchant backend trust boundary:
// payment verification (the single source of truth for "payment happened")
// and manual bank-transfer recording.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dgeemedia/business-sub001/internal/domain"
	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/adapter"
)

var (
	_ adapter.Verifier       = (*Client)(nil)
	_ adapter.ManualRecorder = (*Client)(nil)
)

// Raw transport and decode errors are masked behind these so users never see
// Go internals.
var (
	errUnreachable = errors.New("could not reach the payment server")
	errBadResponse = errors.New("unexpected response from the payment server")
)

type Client struct {
	baseURL string
	secret  []byte // HS256 key shared with the backend
	client  *http.Client
	log     *zerolog.Logger
}

func NewClient(baseURL, secret string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		secret:  []byte(secret),
		client:  &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// Verify posts the provider confirmation to the backend. The backend owns the
// activation guarantee and deduplicates by tx_ref, so re-issuing the same
// request cannot double-activate.
func (c *Client) Verify(ctx context.Context, req adapter.VerifyRequest) (*model.ActivationResult, error) {
	payload := map[string]any{
		"transaction_id": req.TransactionID,
		"tx_ref":         req.TxRef,
		"plan":           req.Plan,
		"provider":       string(req.Provider),
		"business_id":    req.BusinessID,
	}

	var out model.ActivationResult
	if err := c.post(ctx, "/api/v1/payments/verify", req.BusinessID, payload, &out); err != nil {
		return nil, &domain.VerificationError{Message: errMessage(err)}
	}
	if out.Status == "" {
		out.Status = "active"
	}
	return &out, nil
}

// Record creates a pending manual-payment request for back-office review.
func (c *Client) Record(ctx context.Context, req adapter.ManualRequest) error {
	payload := map[string]any{
		"type":        "subscription_renewal",
		"plan":        req.Plan,
		"business_id": req.BusinessID,
		"message":     req.Message,
	}
	if err := c.post(ctx, "/api/v1/payments/manual", req.BusinessID, payload, nil); err != nil {
		return &domain.RecorderError{Message: errMessage(err)}
	}
	return nil
}

// apiError is the backend's error envelope; Message is consumed for display.
type apiError struct {
	Message string `json:"message"`
	Error_  string `json:"error"`
}

func (e *apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error_
}

func (c *Client) post(ctx context.Context, path, businessID string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	token, err := c.signToken(businessID)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("backend request failed")
		return errUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if msg := apiErr.text(); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("backend http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("backend response decode failed")
		return errBadResponse
	}
	return nil
}

// signToken mints a short-lived HS256 bearer token scoped to the business.
func (c *Client) signToken(businessID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": businessID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
