package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeIgnoreFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMatchPatterns(t *testing.T) {
	tests := []struct {
		name    string
		rules   string
		path    string
		isDir   bool
		ignored bool
	}{
		{"basename anywhere", "*.log\n", "debug.log", false, true},
		{"basename nested", "*.log\n", "a/b/debug.log", false, true},
		{"star does not cross separator", "a*.py\n", "a/x.py", false, false},
		{"question mark", "file?.py\n", "file1.py", false, true},
		{"question mark not separator", "a?b\n", "a/b", false, false},
		{"char class", "file[0-9].py\n", "file7.py", false, true},
		{"negated char class", "file[!0-9].py\n", "filex.py", false, true},
		{"negated char class excludes digit", "file[!0-9].py\n", "file7.py", false, false},
		{"dir anchor matches contents", "tests/\n", "tests/a.py", false, true},
		{"dir anchor matches the dir", "tests/\n", "tests", true, true},
		{"dir anchor does not match plain file", "tests/\n", "tests", false, false},
		{"dir anchor nested", "tests/\n", "pkg/tests/a.py", false, true},
		{"plain name matches dir contents", "build\n", "build/out.bin", false, true},
		{"anchored to root", "/vendor\n", "vendor/x.go", false, true},
		{"anchored misses nested", "/vendor\n", "pkg/vendor/x.go", false, false},
		{"slash anchors", "src/gen\n", "src/gen/a.py", false, true},
		{"slash anchors misses nested", "src/gen\n", "x/src/gen/a.py", false, false},
		{"doublestar leading", "**/secrets.yml\n", "a/b/c/secrets.yml", false, true},
		{"doublestar middle", "a/**/z.py\n", "a/z.py", false, true},
		{"doublestar middle deep", "a/**/z.py\n", "a/b/c/z.py", false, true},
		{"doublestar trailing", "dist/**\n", "dist/x/y.js", false, true},
		{"doublestar trailing not itself", "dist/**\n", "dist", true, false},
		{"comment skipped", "# *.py\n", "a.py", false, false},
		{"blank lines skipped", "\n\n*.tmp\n", "x.tmp", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeIgnoreFile(t, dir, tt.rules)
			m := Build(dir, nil)
			if got := m.Match(tt.path, tt.isDir); got != tt.ignored {
				t.Errorf("Match(%q, dir=%v) = %v, want %v (rules %q)", tt.path, tt.isDir, got, tt.ignored, tt.rules)
			}
		})
	}
}

func TestNegationLastMatchWins(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "tests/\n!tests/keep.py\n*.log\n!important.log\n")
	m := Build(dir, nil)

	if !m.IsIgnored("tests/a.py") {
		t.Error("tests/a.py should stay ignored")
	}
	if m.IsIgnored("tests/keep.py") {
		t.Error("a later negation must re-include tests/keep.py")
	}
	if !m.IsIgnored("debug.log") {
		t.Error("debug.log should be ignored")
	}
	if m.IsIgnored("important.log") {
		t.Error("a later negation must re-include important.log")
	}
	if m.IsIgnored("sub/important.log") {
		t.Error("negation applies at every depth for unanchored patterns")
	}
	if !m.HasNegations() {
		t.Error("HasNegations() = false with two negated rules")
	}
}

func TestNegationOrderMatters(t *testing.T) {
	dir := t.TempDir()
	// Negation first, broader exclusion after: the later rule wins.
	writeIgnoreFile(t, dir, "!keep.log\n*.log\n")
	m := Build(dir, nil)
	if !m.IsIgnored("keep.log") {
		t.Error("an exclusion after the negation must win")
	}
}

func TestCLIPatternsAddOnly(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "tests/\n!tests/keep.py\n")
	m := Build(dir, []string{"*.log", "!tests/keep.py"})

	if !m.IsIgnored("debug.log") {
		t.Error("CLI pattern should add an exclusion")
	}
	if m.IsIgnored("tests/keep.py") {
		t.Error("CLI patterns must not remove file-rule re-inclusions")
	}
	warns := m.Degraded()
	found := false
	for _, w := range warns {
		if strings.Contains(w, "negation") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning about CLI negation, got %v", warns)
	}
}

func TestSelectionScenario(t *testing.T) {
	// Ignore file `tests/` plus CLI `*.log` over {tests/a.py, src/b.py,
	// debug.log} selects exactly {src/b.py}.
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "tests/\n")
	m := Build(dir, []string{"*.log"})

	paths := []string{"tests/a.py", "src/b.py", "debug.log"}
	var selected []string
	for _, p := range paths {
		if !m.IsIgnored(p) {
			selected = append(selected, p)
		}
	}
	if len(selected) != 1 || selected[0] != "src/b.py" {
		t.Errorf("selected = %v, want [src/b.py]", selected)
	}
}

func TestUpwardDiscovery(t *testing.T) {
	root := t.TempDir()
	writeIgnoreFile(t, root, "*.secret\n")
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	path, err := FindIgnoreFile(nested)
	if err != nil {
		t.Fatalf("FindIgnoreFile() error = %v", err)
	}
	if path != filepath.Join(root, IgnoreFileName) {
		t.Errorf("FindIgnoreFile() = %q, want the root copy", path)
	}

	m := Build(nested, nil)
	if !m.IsIgnored("x.secret") {
		t.Error("rules from an ancestor directory should apply")
	}
}

func TestNearestIgnoreFileWins(t *testing.T) {
	root := t.TempDir()
	writeIgnoreFile(t, root, "*.outer\n")
	nested := filepath.Join(root, "proj")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	writeIgnoreFile(t, nested, "*.inner\n")

	m := Build(nested, nil)
	if !m.IsIgnored("x.inner") {
		t.Error("nearest file rules should apply")
	}
	if m.IsIgnored("x.outer") {
		t.Error("upward search stops at the first file found")
	}
}

func TestNoIgnoreFileFailsOpen(t *testing.T) {
	m := Build(t.TempDir(), nil)
	if m.IsIgnored("anything.py") {
		t.Error("no rules should mean nothing is ignored")
	}
	if m.RuleCount() != 0 {
		t.Errorf("RuleCount() = %d, want 0", m.RuleCount())
	}
}

func TestInvalidPatternDegradesOpen(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "file[0-9.py\n*.log\n")
	m := Build(dir, nil)

	if len(m.Degraded()) == 0 {
		t.Fatal("invalid pattern should be reported")
	}
	if m.IsIgnored("file7.py") {
		t.Error("the broken rule must be skipped, not guessed at")
	}
	if !m.IsIgnored("debug.log") {
		t.Error("later valid rules still apply")
	}
}

func TestMatchIsPure(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, "tests/\n!tests/keep.py\n")
	m := Build(dir, nil)
	for i := 0; i < 3; i++ {
		if m.IsIgnored("tests/keep.py") || !m.IsIgnored("tests/drop.py") {
			t.Fatalf("iteration %d changed the verdict", i)
		}
	}
}
