package models

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies a finding. The set is closed: values outside it are
// normalized by ParseSeverity, never stored raw.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity normalizes a wire or CLI severity string. "warning" is an
// alias for medium and "info" for low; anything unrecognized maps to low.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "warning":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Rank gives the total order critical > high > medium > low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// SeverityOrder lists the buckets from most to least severe. Report
// subsections are emitted in this order.
func SeverityOrder() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Finding is one clause evaluation reported by the remote service.
// Location is "file:line" or file-only, as the service reports it.
type Finding struct {
	ClauseID       string   `json:"clause_id"`
	Regulation     string   `json:"regulation,omitempty"`
	Violation      bool     `json:"violation"`
	Severity       Severity `json:"severity"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// FilterMinSeverity drops findings below min. An empty min keeps everything.
func FilterMinSeverity(findings []Finding, min Severity) []Finding {
	if min == "" {
		return findings
	}
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.Rank() >= min.Rank() {
			out = append(out, f)
		}
	}
	return out
}

// CountBySeverity tallies findings per bucket.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// TokenUsage is the remote-reported consumption of a completed scan.
type TokenUsage struct {
	TotalTokens int     `json:"total_tokens"`
	Cost        float64 `json:"cost"`
}

// RegulationCost is one row of an estimate's per-regulation breakdown.
type RegulationCost struct {
	Regulation string  `json:"regulation"`
	Tokens     int     `json:"tokens"`
	Cost       float64 `json:"cost"`
}

// FileCost is one row of an estimate's per-file breakdown. Oversize files
// are priced but flagged so the caller can warn before submitting.
type FileCost struct {
	Path     string  `json:"path"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
	Oversize bool    `json:"too_large"`
}

// CostEstimate is the remote estimate response. Treated as read-only after
// decoding; nothing in the pipeline mutates it.
type CostEstimate struct {
	TotalTokens         int              `json:"total_tokens"`
	PromptTokens        int              `json:"prompt_tokens"`
	CompletionTokens    int              `json:"completion_tokens"`
	EstimatedCost       float64          `json:"estimated_cost"`
	RegulationBreakdown []RegulationCost `json:"regulation_breakdown"`
	FileBreakdown       []FileCost       `json:"file_breakdown"`
}

// OversizeFiles returns the breakdown rows flagged too large.
func (e CostEstimate) OversizeFiles() []FileCost {
	var out []FileCost
	for _, fc := range e.FileBreakdown {
		if fc.Oversize {
			out = append(out, fc)
		}
	}
	return out
}

// ScanMode selects the analysis depth on the remote side. Deep mode also
// widens local collection to evidence documents.
type ScanMode string

const (
	ModeLightweight ScanMode = "ai"
	ModeDeep        ScanMode = "full"
)

// ParseScanMode accepts the wire names plus the descriptive aliases.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ai", "lightweight", "":
		return ModeLightweight, nil
	case "full", "deep":
		return ModeDeep, nil
	default:
		return "", fmt.Errorf("unknown scan mode %q", s)
	}
}

// FilePayload is one collected file, path relative to the scan root.
type FilePayload struct {
	Path    string
	Content string
}

// ScanRequest carries everything one submission needs. Files are ordered by
// relative path before the request is built; Regulations are deduplicated
// and never empty at submit time.
type ScanRequest struct {
	Path           string
	Files          []FilePayload
	Regulations    []string
	Mode           ScanMode
	Provider       string
	Model          string
	Template       string
	Formats        []string
	CompanyName    string
	CompanyLogo    string
	IncludeClauses []string
	ExcludeClauses []string
	MinSeverity    Severity
	MaxCost        float64
}

// FileMap flattens Files into the path→content object the wire expects.
// JSON object keys marshal sorted, which matches the relative-path ordering
// the remote keys its caching on.
func (r *ScanRequest) FileMap() map[string]string {
	m := make(map[string]string, len(r.Files))
	for _, f := range r.Files {
		m[f.Path] = f.Content
	}
	return m
}

// SortFiles orders Files by relative path. Collection may run concurrently;
// the request payload must not depend on arrival order.
func (r *ScanRequest) SortFiles() {
	sort.Slice(r.Files, func(i, j int) bool { return r.Files[i].Path < r.Files[j].Path })
}

// GeneratedReport names a remote-rendered artifact available for download.
type GeneratedReport struct {
	Format   string `json:"format"`
	Filename string `json:"filename"`
}

// CacheStats is the remote-side cache summary, present when the service
// reports it.
type CacheStats struct {
	TotalFiles   int     `json:"total_files"`
	CacheHits    int     `json:"cache_hits"`
	CacheMisses  int     `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	TokensSaved  int     `json:"tokens_saved"`
	CostSaved    float64 `json:"cost_saved"`
}
