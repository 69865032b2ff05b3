// Package ignore selects files for scanning with gitignore-style rules.
// Rules come from a .clausiignore file discovered by walking upward from the
// scan root, plus patterns supplied on the command line. Matching is a pure
// predicate once the matcher is built.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the rules file discovered by upward search.
const IgnoreFileName = ".clausiignore"

// Matcher answers whether a relative path is excluded from the scan.
// File rules are evaluated in file order with last-match-wins semantics, so
// a later `!pattern` re-includes a path excluded earlier. Command-line
// patterns run after the file rules and can only add exclusions.
type Matcher struct {
	rules    []rule
	cli      []rule
	warnings []string
}

// Build discovers and parses the ignore file upward from root and compiles
// the command-line patterns. Every failure degrades to fail-open: the
// offending source is skipped, a warning is recorded, and the scan sees more
// files rather than fewer. Build never returns an error.
func Build(root string, cliPatterns []string) *Matcher {
	m := &Matcher{}

	path, err := FindIgnoreFile(root)
	if err != nil {
		m.warnings = append(m.warnings, fmt.Sprintf("ignore file discovery failed: %v (continuing unfiltered)", err))
	} else if path != "" {
		rules, warns, err := parseFile(path)
		if err != nil {
			m.warnings = append(m.warnings, fmt.Sprintf("cannot read %s: %v (continuing unfiltered)", path, err))
		} else {
			m.rules = rules
			m.warnings = append(m.warnings, warns...)
		}
	}

	for _, p := range cliPatterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		if strings.HasPrefix(p, "!") {
			m.warnings = append(m.warnings, fmt.Sprintf("--ignore %q: negation is only supported in %s, pattern skipped", p, IgnoreFileName))
			continue
		}
		r, err := compileRule(p, "--ignore")
		if err != nil {
			m.warnings = append(m.warnings, fmt.Sprintf("--ignore %q: %v, pattern skipped", p, err))
			continue
		}
		m.cli = append(m.cli, r)
	}
	return m
}

// FindIgnoreFile searches dir and its parents for the rules file. Returns
// the empty string when no file exists up to the filesystem root.
func FindIgnoreFile(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(abs, IgnoreFileName)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", nil
		}
		abs = parent
	}
}

func parseFile(path string) ([]rule, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var rules []rule
	var warnings []string
	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		src := fmt.Sprintf("%s:%d", filepath.Base(path), lineNo)
		r, err := compileRule(line, src)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, pattern skipped", src, err))
			continue
		}
		rules = append(rules, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return rules, warnings, nil
}

// Match reports whether rel (slash- or OS-separated, relative to the scan
// root) is ignored. isDir distinguishes directory-only rules when rel names
// the matched entry itself.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "./")
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return false
	}

	ignored := false
	for _, r := range m.rules {
		if r.match(rel, isDir) {
			ignored = !r.negated
		}
	}
	if ignored {
		return true
	}
	for _, r := range m.cli {
		if r.match(rel, isDir) {
			return true
		}
	}
	return false
}

// IsIgnored is Match for regular files.
func (m *Matcher) IsIgnored(rel string) bool {
	return m.Match(rel, false)
}

// Degraded lists the warnings accumulated while building the matcher. Empty
// means every rule source compiled cleanly.
func (m *Matcher) Degraded() []string {
	return m.warnings
}

// RuleCount returns how many rules are active, file and command line
// combined.
func (m *Matcher) RuleCount() int {
	return len(m.rules) + len(m.cli)
}

// HasNegations reports whether any file rule re-includes paths. Walkers must
// not prune ignored directories when this is true: a deeper `!pattern` may
// re-include a file the pruned subtree contains.
func (m *Matcher) HasNegations() bool {
	for _, r := range m.rules {
		if r.negated {
			return true
		}
	}
	return false
}
