package report

import (
	"encoding/json"
	"time"

	"github.com/earosenfeld/clausi-cli/internal/models"
)

// jsonReport is the machine-readable dump. It carries the scan data
// unstyled; template Style and Assets do not apply here.
type jsonReport struct {
	GeneratedAt string            `json:"generated_at"`
	ScanPath    string            `json:"scan_path"`
	Mode        string            `json:"mode"`
	Regulations []string          `json:"regulations"`
	Template    string            `json:"template"`
	Company     string            `json:"company,omitempty"`
	Summary     jsonSummary       `json:"summary"`
	Findings    []models.Finding  `json:"findings"`
	TokenUsage  models.TokenUsage `json:"token_usage"`
}

type jsonSummary struct {
	FilesAnalyzed int            `json:"files_analyzed"`
	TotalFindings int            `json:"total_findings"`
	BySeverity    map[string]int `json:"by_severity"`
}

// renderJSON marshals the scan results with fixed field and findings
// order. Same input, same bytes.
func renderJSON(tmpl Template, in Input) ([]byte, error) {
	bySeverity := make(map[string]int, 4)
	for sev, n := range models.CountBySeverity(in.Findings) {
		bySeverity[string(sev)] = n
	}
	findings := in.Findings
	if findings == nil {
		findings = []models.Finding{}
	}
	doc := jsonReport{
		GeneratedAt: in.Timestamp.UTC().Format(time.RFC3339),
		ScanPath:    in.ScanPath,
		Mode:        string(in.Mode),
		Regulations: in.Regulations,
		Template:    tmpl.Name,
		Company:     in.CompanyName,
		Summary: jsonSummary{
			FilesAnalyzed: in.FilesAnalyzed,
			TotalFindings: len(findings),
			BySeverity:    bySeverity,
		},
		Findings:   findings,
		TokenUsage: in.TokenUsage,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
