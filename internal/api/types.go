package api

import "github.com/earosenfeld/clausi-cli/internal/models"

// EstimateRequest is the body of POST /api/clausi/estimate.
type EstimateRequest struct {
	Files       map[string]string `json:"files"`
	Regulations []string          `json:"regulations"`
	Mode        models.ScanMode   `json:"mode"`
}

// CustomRegulation carries a user-supplied regulation definition to the
// service alongside the built-in keys. Content is the parsed YAML document
// as-is; the service interprets it.
type CustomRegulation struct {
	Code    string         `json:"code"`
	Content map[string]any `json:"content"`
}

// ScanPayload is the body of POST /api/clausi/scan.
type ScanPayload struct {
	Path              string             `json:"path"`
	Files             map[string]string  `json:"files"`
	Regulations       []string           `json:"regulations"`
	CustomRegulations []CustomRegulation `json:"custom_regulations,omitempty"`
	Mode              models.ScanMode    `json:"mode"`
	Provider          string             `json:"ai_provider,omitempty"`
	Model             string             `json:"ai_model,omitempty"`
	MinSeverity       string             `json:"min_severity,omitempty"`
	IncludeClauses    []string           `json:"clauses_include,omitempty"`
	ExcludeClauses    []string           `json:"clauses_exclude,omitempty"`
	Formats           []string           `json:"report_format,omitempty"`
	Template          string             `json:"template,omitempty"`
	CompanyName       string             `json:"company_name,omitempty"`
	CompanyLogo       string             `json:"company_logo,omitempty"`
}

// ScanSuccess is the decoded 200 body of the scan endpoint.
type ScanSuccess struct {
	Findings         []models.Finding         `json:"findings"`
	TokenUsage       models.TokenUsage        `json:"token_usage"`
	GeneratedReports []models.GeneratedReport `json:"generated_reports"`
	CacheStats       *models.CacheStats       `json:"cache_stats,omitempty"`
}

// ScanResponse is one raw submission outcome, decoded per status so the
// session state machine can branch without touching HTTP internals.
// Exactly one of the pointer fields is set for the handled statuses.
type ScanResponse struct {
	Status      int
	Success     *ScanSuccess
	NewToken    string // 401: trial token issued in the body
	Credits     int    // 401: starting credit balance
	CheckoutURL string // 402: where payment completes
	BodyExcerpt string // other statuses, for error context
}

// PaymentStatus is the pre-flight check-payment-required response.
type PaymentStatus struct {
	Required         bool   `json:"payment_required"`
	CheckoutURL      string `json:"checkout_url"`
	CreditsRemaining int    `json:"credits_remaining"`
}

// RegulationInfo describes one catalog entry from the regulations endpoint.
// The wire format is a flat list; Code keys the converted map.
type RegulationInfo struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TokenStatus reports credential validity and remaining credits.
type TokenStatus struct {
	Valid   bool   `json:"valid"`
	Credits int    `json:"credits"`
	Plan    string `json:"plan,omitempty"`
}
