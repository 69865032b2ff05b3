package report

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/earosenfeld/clausi-cli/internal/models"
)

//go:embed layout.html
var layoutHTML string

type htmlView struct {
	Title         string
	Description   string
	Company       string
	Generated     string
	ScanPath      string
	Mode          string
	Regulations   []string
	Provider      string
	Model         string
	FilesAnalyzed int
	Total         int
	Counts        map[string]int
	TokenUsage    models.TokenUsage
	Style         viewStyle
	LogoURI       template.URL
	Sections      []sectionView
}

// viewStyle carries the template's style record as trusted CSS. Values
// come from the built-in registry, not user input.
type viewStyle struct {
	Primary template.CSS
	Accent  template.CSS
	Font    template.CSS
}

type sectionView struct {
	ID       string
	Title    string
	Fragment string
	Buckets  []bucketView
	Files    []fileGroup
	Recs     []string
	Risk     string
}

type bucketView struct {
	ID       string
	Title    string
	Findings []models.Finding
}

type fileGroup struct {
	File     string
	Findings []models.Finding
}

func (r *Renderer) renderHTML(tmpl Template, in Input) ([]byte, error) {
	t, err := template.New("report").Funcs(template.FuncMap{
		"severityClass": func(s models.Severity) string { return "sev-" + string(s) },
		"upper":         strings.ToUpper,
	}).Parse(layoutHTML)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, r.buildView(tmpl, in)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildView assembles the section sequence the layout walks. Sections and
// subsections follow their Order fields; an optional section drops out
// when the scan produced no findings.
func (r *Renderer) buildView(tmpl Template, in Input) htmlView {
	counts := models.CountBySeverity(in.Findings)
	buckets := bucketFindings(in.Findings)
	hasFindings := len(in.Findings) > 0

	byName := make(map[string]int, 4)
	for sev, n := range counts {
		byName[string(sev)] = n
	}

	view := htmlView{
		Title:         tmpl.DisplayName,
		Description:   tmpl.Description,
		Company:       in.CompanyName,
		Generated:     in.Timestamp.UTC().Format(time.RFC3339),
		ScanPath:      in.ScanPath,
		Mode:          string(in.Mode),
		Regulations:   in.Regulations,
		Provider:      in.Provider,
		Model:         in.Model,
		FilesAnalyzed: in.FilesAnalyzed,
		Total:         len(in.Findings),
		Counts:        byName,
		TokenUsage:    in.TokenUsage,
		Style: viewStyle{
			Primary: template.CSS(tmpl.Style.PrimaryColor),
			Accent:  template.CSS(tmpl.Style.AccentColor),
			Font:    template.CSS(tmpl.Style.FontFamily),
		},
		LogoURI: r.resolveLogo(tmpl.Assets),
	}

	for _, s := range tmpl.OrderedSections() {
		if !s.Required && !hasFindings {
			continue
		}
		sv := sectionView{ID: s.ID, Title: s.Title, Fragment: s.Fragment}
		switch s.Fragment {
		case "findings":
			for _, sub := range s.Subsections {
				sv.Buckets = append(sv.Buckets, bucketView{
					ID:       sub.ID,
					Title:    sub.Title,
					Findings: buckets[models.Severity(sub.ID)],
				})
			}
		case "code":
			sv.Files = groupByFile(in.Findings)
		case "recommendations":
			sv.Recs = collectRecommendations(in.Findings)
		case "risk":
			sv.Risk = riskLevel(counts)
		}
		view.Sections = append(view.Sections, sv)
	}
	return view
}

// resolveLogo turns a logo asset into a data URI so the document stays
// self-contained for the print pipeline. A missing file is a warning, not
// a render failure.
func (r *Renderer) resolveLogo(assets []Asset) template.URL {
	for _, a := range assets {
		if a.Type != "logo" {
			r.log.Warnw("unsupported report asset type, skipping", "type", a.Type, "path", a.Path)
			continue
		}
		data, err := os.ReadFile(a.Path)
		if err != nil {
			r.log.Warnw("report asset unresolvable, continuing without it", "path", a.Path, "err", err)
			continue
		}
		return template.URL("data:" + logoMIME(a.Path) + ";base64," + base64.StdEncoding.EncodeToString(data))
	}
	return ""
}

func logoMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// groupByFile buckets findings by the file part of their location,
// dropping any ":line" suffix. Findings keep their sorted order inside
// each group.
func groupByFile(findings []models.Finding) []fileGroup {
	idx := make(map[string]int)
	var groups []fileGroup
	for _, f := range findings {
		file := f.Location
		if i := strings.Index(file, ":"); i > 0 {
			file = file[:i]
		}
		if file == "" {
			file = "project-wide"
		}
		i, ok := idx[file]
		if !ok {
			i = len(groups)
			idx[file] = i
			groups = append(groups, fileGroup{File: file})
		}
		groups[i].Findings = append(groups[i].Findings, f)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].File < groups[j].File })
	return groups
}

func collectRecommendations(findings []models.Finding) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range findings {
		rec := strings.TrimSpace(f.Recommendation)
		if rec == "" || seen[rec] {
			continue
		}
		seen[rec] = true
		out = append(out, rec)
	}
	return out
}

func riskLevel(counts map[models.Severity]int) string {
	switch {
	case counts[models.SeverityCritical] > 0:
		return "High"
	case counts[models.SeverityHigh] > 0:
		return "Elevated"
	case counts[models.SeverityMedium] > 0:
		return "Moderate"
	case counts[models.SeverityLow] > 0:
		return "Low"
	default:
		return "Minimal"
	}
}
