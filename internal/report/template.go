// Package report turns a findings payload into report artifacts: a
// template-driven HTML/PDF rendering and a structural JSON dump, plus the
// audit metadata every scan writes. Section sequence comes from the
// template definition, never from code order.
package report

import (
	"fmt"
	"sort"
)

// ConfigurationError reports bad render input, an unknown template or
// format. Fatal; nothing is written.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// Subsection is one bucket inside a section, emitted in ascending Order.
type Subsection struct {
	ID    string
	Title string
	Order int
}

// Section is one report block. Required sections are emitted even when
// empty; optional ones drop out of a report with nothing to show.
type Section struct {
	ID          string
	Title       string
	Required    bool
	Order       int
	Fragment    string
	Subsections []Subsection
}

// Style is the template's visual record, applied to html/pdf only.
type Style struct {
	PrimaryColor string
	AccentColor  string
	FontFamily   string
}

// Asset references an external file the rendering should include.
type Asset struct {
	Type string
	Path string
}

// Template is a named, ordered report definition.
type Template struct {
	Name        string
	DisplayName string
	Description string
	Version     string
	Sections    []Section
	Style       Style
	Assets      []Asset
}

// severitySubsections orders the findings buckets, worst first.
func severitySubsections() []Subsection {
	return []Subsection{
		{ID: "critical", Title: "Critical", Order: 10},
		{ID: "high", Title: "High", Order: 20},
		{ID: "medium", Title: "Medium", Order: 30},
		{ID: "low", Title: "Low", Order: 40},
	}
}

func sectionDef(id string) Section {
	switch id {
	case "executive_summary":
		return Section{ID: id, Title: "Executive Summary", Required: true, Fragment: "summary"}
	case "methodology":
		return Section{ID: id, Title: "Methodology", Required: true, Fragment: "methodology"}
	case "findings":
		return Section{ID: id, Title: "Findings", Required: true, Fragment: "findings", Subsections: severitySubsections()}
	case "key_findings":
		return Section{ID: id, Title: "Key Findings", Required: true, Fragment: "findings", Subsections: severitySubsections()}
	case "code_analysis":
		return Section{ID: id, Title: "Code Analysis", Fragment: "code"}
	case "risk_assessment":
		return Section{ID: id, Title: "Risk Assessment", Required: true, Fragment: "risk"}
	case "recommendations":
		return Section{ID: id, Title: "Recommendations", Required: true, Fragment: "recommendations"}
	case "appendix":
		return Section{ID: id, Title: "Appendix", Fragment: "appendix"}
	default:
		return Section{ID: id, Title: id, Fragment: "summary"}
	}
}

func buildTemplate(name, displayName, description string, sectionIDs ...string) Template {
	t := Template{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Version:     "1",
		Style: Style{
			PrimaryColor: "#0f172a",
			AccentColor:  "#2563eb",
			FontFamily:   "'Helvetica Neue', Arial, sans-serif",
		},
	}
	for i, id := range sectionIDs {
		s := sectionDef(id)
		s.Order = (i + 1) * 10
		t.Sections = append(t.Sections, s)
	}
	return t
}

// Templates returns the built-in template registry.
func Templates() map[string]Template {
	return map[string]Template{
		"default": buildTemplate("default", "Default Template",
			"Standard compliance report with findings and recommendations",
			"executive_summary", "findings", "recommendations", "appendix"),
		"detailed": buildTemplate("detailed", "Detailed Technical Report",
			"Comprehensive technical report with code analysis and detailed findings",
			"executive_summary", "methodology", "findings", "code_analysis", "recommendations", "appendix"),
		"executive": buildTemplate("executive", "Executive Summary",
			"High-level summary for non-technical stakeholders",
			"executive_summary", "key_findings", "risk_assessment", "recommendations"),
	}
}

// Lookup resolves a template by name.
func Lookup(name string) (Template, error) {
	t, ok := Templates()[name]
	if !ok {
		return Template{}, &ConfigurationError{Msg: fmt.Sprintf("unknown report template %q", name)}
	}
	return t, nil
}

// TemplateNames lists the registry keys, sorted.
func TemplateNames() []string {
	all := Templates()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OrderedSections returns the sections sorted by Order, subsections too.
// Emission follows this sequence, whatever order the definition listed.
func (t Template) OrderedSections() []Section {
	out := make([]Section, len(t.Sections))
	copy(out, t.Sections)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		subs := make([]Subsection, len(out[i].Subsections))
		copy(subs, out[i].Subsections)
		sort.SliceStable(subs, func(a, b int) bool { return subs[a].Order < subs[b].Order })
		out[i].Subsections = subs
	}
	return out
}
