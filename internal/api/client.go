// Package api talks to the hosted compliance service. The client decodes
// each endpoint's wire format and classifies failures; it performs no
// retries and no user interaction.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/earosenfeld/clausi-cli/internal/models"
)

const bodyExcerptLimit = 2048

// Client is a thin HTTP client for the service API. Provider and key are
// fixed per invocation; the credential is passed per call because the scan
// flow may swap it mid-session.
type Client struct {
	BaseURL     string
	Provider    string
	ProviderKey string
	HTTP        *http.Client
	log         *zap.SugaredLogger
}

// New builds a client. timeout applies per request; zero keeps the
// transport's default.
func New(baseURL, provider, providerKey string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Provider:    provider,
		ProviderKey: providerKey,
		HTTP:        &http.Client{Timeout: timeout},
		log:         log,
	}
}

func (c *Client) headers(token string) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if token != "" {
		h["X-Clausi-Key"] = token
	}
	if c.ProviderKey != "" {
		switch c.Provider {
		case "claude":
			h["X-Anthropic-Key"] = c.ProviderKey
		case "openai":
			h["X-OpenAI-Key"] = c.ProviderKey
		}
	}
	return h
}

func (c *Client) postJSON(ctx context.Context, op, path string, body any, token string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	for k, v := range c.headers(token) {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

func excerpt(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, bodyExcerptLimit))
	return strings.TrimSpace(string(data))
}

// Estimate asks the service to price the selected files against the chosen
// regulations. Non-200 responses are RemoteErrors; the caller decides
// whether a TransportError is worth a manual retry.
func (c *Client) Estimate(ctx context.Context, req EstimateRequest, token string) (models.CostEstimate, error) {
	resp, err := c.postJSON(ctx, "estimate", "/api/clausi/estimate", req, token)
	if err != nil {
		return models.CostEstimate{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.CostEstimate{}, &RemoteError{Stage: "estimate", Status: resp.StatusCode, Body: excerpt(resp.Body)}
	}
	var est models.CostEstimate
	if err := json.NewDecoder(resp.Body).Decode(&est); err != nil {
		return models.CostEstimate{}, fmt.Errorf("estimate: decode response: %w", err)
	}
	c.log.Debugw("estimate received",
		"total_tokens", est.TotalTokens,
		"estimated_cost", est.EstimatedCost,
		"files", len(est.FileBreakdown))
	return est, nil
}

// SubmitScan performs one scan submission and decodes the body for the
// statuses the session state machine handles. Only transport-level failures
// come back as errors; every HTTP status is a valid ScanResponse.
func (c *Client) SubmitScan(ctx context.Context, payload ScanPayload, token string) (*ScanResponse, error) {
	resp, err := c.postJSON(ctx, "scan", "/api/clausi/scan", payload, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &ScanResponse{Status: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusOK:
		var success ScanSuccess
		if err := json.NewDecoder(resp.Body).Decode(&success); err != nil {
			return nil, fmt.Errorf("scan: decode response: %w", err)
		}
		for i := range success.Findings {
			success.Findings[i].Severity = models.ParseSeverity(string(success.Findings[i].Severity))
		}
		out.Success = &success
	case http.StatusUnauthorized:
		var grant struct {
			APIToken string `json:"api_token"`
			Credits  int    `json:"credits"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
			// A 401 without a token grant is a plain rejection.
			c.log.Debugw("401 body not a token grant", "err", err)
		}
		out.NewToken = grant.APIToken
		out.Credits = grant.Credits
	case http.StatusPaymentRequired:
		var due struct {
			CheckoutURL      string `json:"checkout_url"`
			CreditsRemaining int    `json:"credits_remaining"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&due); err != nil {
			c.log.Debugw("402 body undecodable", "err", err)
		}
		out.CheckoutURL = due.CheckoutURL
		out.Credits = due.CreditsRemaining
	default:
		out.BodyExcerpt = excerpt(resp.Body)
	}
	return out, nil
}

// CheckPaymentRequired is the pre-flight call that avoids estimating a scan
// the user cannot pay for.
func (c *Client) CheckPaymentRequired(ctx context.Context, mode models.ScanMode, token string) (PaymentStatus, error) {
	body := map[string]string{"mode": string(mode)}
	resp, err := c.postJSON(ctx, "payment check", "/api/clausi/check-payment-required", body, token)
	if err != nil {
		return PaymentStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PaymentStatus{}, &RemoteError{Stage: "payment check", Status: resp.StatusCode, Body: excerpt(resp.Body)}
	}
	var status PaymentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return PaymentStatus{}, fmt.Errorf("payment check: decode response: %w", err)
	}
	return status, nil
}

// Regulations fetches the service's regulation catalog.
func (c *Client) Regulations(ctx context.Context) (map[string]RegulationInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/clausi/regulations", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "regulations", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Stage: "regulations", Status: resp.StatusCode, Body: excerpt(resp.Body)}
	}
	var list []RegulationInfo
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("regulations: decode response: %w", err)
	}
	catalog := make(map[string]RegulationInfo, len(list))
	for _, reg := range list {
		catalog[reg.Code] = reg
	}
	return catalog, nil
}

// TokenStatus checks credential validity and remaining credits.
func (c *Client) TokenStatus(ctx context.Context, token string) (TokenStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/clausi/token/status", nil)
	if err != nil {
		return TokenStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return TokenStatus{}, &TransportError{Op: "token status", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TokenStatus{}, &RemoteError{Stage: "token status", Status: resp.StatusCode, Body: excerpt(resp.Body)}
	}
	var status TokenStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return TokenStatus{}, fmt.Errorf("token status: decode response: %w", err)
	}
	return status, nil
}

// DownloadReport fetches a remote-rendered report by filename.
func (c *Client) DownloadReport(ctx context.Context, filename, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/clausi/report/"+filename, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "report download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Stage: "report download", Status: resp.StatusCode, Body: excerpt(resp.Body)}
	}
	return io.ReadAll(resp.Body)
}
