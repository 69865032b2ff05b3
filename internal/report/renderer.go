package report

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/earosenfeld/clausi-cli/internal/models"
	"github.com/earosenfeld/clausi-cli/internal/support"
)

// MetadataFilename is the audit record written once per scan, alongside
// whatever report formats were requested.
const MetadataFilename = "audit_metadata.json"

// Input carries one scan's results into rendering. Timestamp is fixed by
// the caller so repeated renders of the same scan produce identical bytes.
type Input struct {
	ScanPath       string
	Regulations    []string
	Mode           models.ScanMode
	Provider       string
	Model          string
	CompanyName    string
	IncludeClauses []string
	ExcludeClauses []string
	FilesAnalyzed  int
	Findings       []models.Finding
	TokenUsage     models.TokenUsage
	Timestamp      time.Time
}

// Artifact describes one file the renderer wrote into the staging dir.
type Artifact struct {
	Format   string
	Filename string
	Path     string
	Size     int64
}

// Renderer writes report artifacts into a caller-supplied staging
// directory. Publishing the directory is the caller's job.
type Renderer struct {
	pdf PDFEngine
	log *zap.SugaredLogger
}

func New(pdf PDFEngine, log *zap.SugaredLogger) *Renderer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Renderer{pdf: pdf, log: log}
}

// ExpandFormats normalizes a requested format list: "all" fans out to
// pdf, html and json, duplicates collapse, and the expansion keeps first
// mention order. Unknown names fail before anything is written.
func ExpandFormats(formats []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool, 3)
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, raw := range formats {
		f := strings.ToLower(strings.TrimSpace(raw))
		switch f {
		case "pdf", "html", "json":
			add(f)
		case "all":
			add("pdf")
			add("html")
			add("json")
		case "":
		default:
			return nil, &ConfigurationError{Msg: fmt.Sprintf("unknown report format %q", raw)}
		}
	}
	if len(out) == 0 {
		return nil, &ConfigurationError{Msg: "no report format requested"}
	}
	return out, nil
}

// Render writes every requested format plus the audit metadata into dir
// and returns the artifacts in write order. On error nothing the caller
// should publish exists; partially staged files die with the staging dir.
func (r *Renderer) Render(ctx context.Context, tmpl Template, in Input, formats []string, dir string) ([]Artifact, error) {
	expanded, err := ExpandFormats(formats)
	if err != nil {
		return nil, err
	}

	// One deterministic findings order feeds every format.
	in.Findings = sortFindings(in.Findings)

	var artifacts []Artifact
	for _, format := range expanded {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var data []byte
		switch format {
		case "json":
			data, err = renderJSON(tmpl, in)
		case "html":
			data, err = r.renderHTML(tmpl, in)
		case "pdf":
			var html []byte
			if html, err = r.renderHTML(tmpl, in); err == nil {
				if r.pdf == nil {
					err = &ConfigurationError{Msg: "pdf output requested but no pdf engine configured"}
				} else {
					data, err = r.pdf.PrintToPDF(ctx, string(html))
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		name := "audit." + format
		path := filepath.Join(dir, name)
		if err := support.WriteFileAtomic(path, data); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		r.log.Debugw("report artifact staged", "format", format, "bytes", len(data))
		artifacts = append(artifacts, Artifact{Format: format, Filename: name, Path: path, Size: int64(len(data))})
	}

	meta := buildMetadata(tmpl, in, artifacts)
	metaPath := filepath.Join(dir, MetadataFilename)
	if err := support.WriteJSONAtomic(metaPath, meta); err != nil {
		return nil, fmt.Errorf("write %s: %w", MetadataFilename, err)
	}
	artifacts = append(artifacts, Artifact{Format: "metadata", Filename: MetadataFilename, Path: metaPath})
	return artifacts, nil
}

// Metadata is the audit record schema. Field order is fixed so repeated
// runs diff cleanly.
type Metadata struct {
	Timestamp      string            `json:"timestamp"`
	Path           string            `json:"path"`
	Regulations    []string          `json:"regulations"`
	Mode           string            `json:"mode"`
	Template       string            `json:"template"`
	Provider       string            `json:"ai_provider,omitempty"`
	Model          string            `json:"ai_model,omitempty"`
	ClausesInclude []string          `json:"clauses_include,omitempty"`
	ClausesExclude []string          `json:"clauses_exclude,omitempty"`
	FilesAnalyzed  int               `json:"files_analyzed"`
	TotalFindings  int               `json:"total_findings"`
	BySeverity     map[string]int    `json:"findings_by_severity"`
	TokenUsage     models.TokenUsage `json:"token_usage"`
	Artifacts      []string          `json:"artifacts"`
}

func buildMetadata(tmpl Template, in Input, artifacts []Artifact) Metadata {
	bySeverity := make(map[string]int, 4)
	for sev, n := range models.CountBySeverity(in.Findings) {
		bySeverity[string(sev)] = n
	}
	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Filename)
	}
	return Metadata{
		Timestamp:      in.Timestamp.UTC().Format(time.RFC3339),
		Path:           in.ScanPath,
		Regulations:    in.Regulations,
		Mode:           string(in.Mode),
		Template:       tmpl.Name,
		Provider:       in.Provider,
		Model:          in.Model,
		ClausesInclude: in.IncludeClauses,
		ClausesExclude: in.ExcludeClauses,
		FilesAnalyzed:  in.FilesAnalyzed,
		TotalFindings:  len(in.Findings),
		BySeverity:     bySeverity,
		TokenUsage:     in.TokenUsage,
		Artifacts:      names,
	}
}

// sortFindings copies and orders findings by severity rank descending,
// then regulation, clause and location for a stable tie-break.
func sortFindings(in []models.Finding) []models.Finding {
	out := make([]models.Finding, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if a, b := out[i].Severity.Rank(), out[j].Severity.Rank(); a != b {
			return a > b
		}
		if out[i].Regulation != out[j].Regulation {
			return out[i].Regulation < out[j].Regulation
		}
		if out[i].ClauseID != out[j].ClauseID {
			return out[i].ClauseID < out[j].ClauseID
		}
		return out[i].Location < out[j].Location
	})
	return out
}

// bucketFindings splits an already sorted findings slice by severity.
func bucketFindings(findings []models.Finding) map[models.Severity][]models.Finding {
	buckets := make(map[models.Severity][]models.Finding, 4)
	for _, f := range findings {
		buckets[f.Severity] = append(buckets[f.Severity], f)
	}
	return buckets
}
