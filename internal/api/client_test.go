package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/earosenfeld/clausi-cli/internal/models"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "claude", "sk-ant-test", 5*time.Second, nil), srv
}

func TestEstimateSendsHeadersAndDecodes(t *testing.T) {
	var gotToken, gotProviderKey, gotPath string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Clausi-Key")
		gotProviderKey = r.Header.Get("X-Anthropic-Key")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"total_tokens":   1200,
			"estimated_cost": 0.36,
			"file_breakdown": []map[string]any{
				{"path": "main.go", "tokens": 1200, "cost": 0.36},
			},
		})
	}))

	est, err := c.Estimate(context.Background(), EstimateRequest{
		Files:       map[string]string{"main.go": "package main"},
		Regulations: []string{"EU-AIA"},
		Mode:        models.ModeLightweight,
	}, "tok-123")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if gotPath != "/api/clausi/estimate" {
		t.Errorf("path = %q", gotPath)
	}
	if gotToken != "tok-123" {
		t.Errorf("X-Clausi-Key = %q, want tok-123", gotToken)
	}
	if gotProviderKey != "sk-ant-test" {
		t.Errorf("X-Anthropic-Key = %q", gotProviderKey)
	}
	if est.TotalTokens != 1200 || est.EstimatedCost != 0.36 {
		t.Errorf("estimate = %+v", est)
	}
	if len(est.FileBreakdown) != 1 || est.FileBreakdown[0].Path != "main.go" {
		t.Errorf("file breakdown = %+v", est.FileBreakdown)
	}
}

func TestEstimateRemoteError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad regulation code", http.StatusBadRequest)
	}))

	_, err := c.Estimate(context.Background(), EstimateRequest{}, "tok")
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want RemoteError", err)
	}
	if remote.Status != http.StatusBadRequest || remote.Stage != "estimate" {
		t.Errorf("remote = %+v", remote)
	}
	if remote.Body != "bad regulation code" {
		t.Errorf("body excerpt = %q", remote.Body)
	}
}

func TestEstimateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := New(srv.URL, "claude", "", time.Second, nil)

	_, err := c.Estimate(context.Background(), EstimateRequest{}, "tok")
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if transport.Op != "estimate" {
		t.Errorf("op = %q", transport.Op)
	}
}

func TestSubmitScanDecodesByStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, resp *ScanResponse)
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{"findings":[{"clause_id":"Art5","regulation":"EU-AIA","violation":"x","severity":"HIGH"}],
				"token_usage":{"input_tokens":10,"output_tokens":5,"total_tokens":15},
				"generated_reports":[{"format":"pdf","filename":"r.pdf"}]}`,
			check: func(t *testing.T, resp *ScanResponse) {
				if resp.Success == nil {
					t.Fatal("Success not decoded")
				}
				if len(resp.Success.Findings) != 1 || resp.Success.Findings[0].Severity != models.SeverityHigh {
					t.Errorf("findings = %+v", resp.Success.Findings)
				}
				if resp.Success.TokenUsage.TotalTokens != 15 {
					t.Errorf("token usage = %+v", resp.Success.TokenUsage)
				}
			},
		},
		{
			name:   "unauthorized with fresh token",
			status: http.StatusUnauthorized,
			body:   `{"api_token":"tok-new","credits":40}`,
			check: func(t *testing.T, resp *ScanResponse) {
				if resp.NewToken != "tok-new" || resp.Credits != 40 {
					t.Errorf("grant = %q credits=%d", resp.NewToken, resp.Credits)
				}
				if resp.Success != nil {
					t.Error("Success set on 401")
				}
			},
		},
		{
			name:   "payment required",
			status: http.StatusPaymentRequired,
			body:   `{"checkout_url":"https://pay.example/cs_1","credits_remaining":0}`,
			check: func(t *testing.T, resp *ScanResponse) {
				if resp.CheckoutURL != "https://pay.example/cs_1" {
					t.Errorf("checkout url = %q", resp.CheckoutURL)
				}
			},
		},
		{
			name:   "server error keeps excerpt",
			status: http.StatusInternalServerError,
			body:   "upstream model unavailable",
			check: func(t *testing.T, resp *ScanResponse) {
				if resp.BodyExcerpt != "upstream model unavailable" {
					t.Errorf("excerpt = %q", resp.BodyExcerpt)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			resp, err := c.SubmitScan(context.Background(), ScanPayload{}, "tok")
			if err != nil {
				t.Fatalf("SubmitScan: %v", err)
			}
			if resp.Status != tt.status {
				t.Fatalf("status = %d, want %d", resp.Status, tt.status)
			}
			tt.check(t, resp)
		})
	}
}

func TestSubmitScanTransportErrorUnwraps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := c.SubmitScan(ctx, ScanPayload{}, "tok")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(err, context.Canceled) = false for %v", err)
	}
}

func TestCheckPaymentRequired(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/clausi/check-payment-required" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["mode"] != "full" {
			t.Errorf("mode = %q", body["mode"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"payment_required":  true,
			"checkout_url":      "https://pay.example/cs_2",
			"credits_remaining": 3,
		})
	}))

	status, err := c.CheckPaymentRequired(context.Background(), models.ModeDeep, "tok")
	if err != nil {
		t.Fatalf("CheckPaymentRequired: %v", err)
	}
	if !status.Required || status.CheckoutURL != "https://pay.example/cs_2" || status.CreditsRemaining != 3 {
		t.Errorf("status = %+v", status)
	}
}

func TestRegulationsCatalog(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"code": "EU-AIA", "name": "EU AI Act", "description": "AI systems"},
			{"code": "GDPR", "name": "GDPR", "description": "Data protection"},
		})
	}))

	catalog, err := c.Regulations(context.Background())
	if err != nil {
		t.Fatalf("Regulations: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("catalog size = %d", len(catalog))
	}
	if catalog["EU-AIA"].Name != "EU AI Act" {
		t.Errorf("EU-AIA = %+v", catalog["EU-AIA"])
	}
}

func TestTokenStatusUsesBearer(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"valid": true, "credits": 12})
	}))

	status, err := c.TokenStatus(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("TokenStatus: %v", err)
	}
	if !status.Valid || status.Credits != 12 {
		t.Errorf("status = %+v", status)
	}
}

func TestDownloadReport(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/clausi/report/scan_1.pdf" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte("%PDF-1.4"))
	}))

	data, err := c.DownloadReport(context.Background(), "scan_1.pdf", "tok-abc")
	if err != nil {
		t.Fatalf("DownloadReport: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("data = %q", data)
	}
}
