package scanner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/earosenfeld/clausi-cli/internal/ignore"
	"github.com/earosenfeld/clausi-cli/internal/models"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func paths(files []models.FilePayload) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestCollectLightweightSelectsSourceOnly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":      "print('hi')",
		"lib/util.go":  "package util",
		"README.md":    "# readme",
		"notes.txt":    "notes",
		"evidence.pdf": "%PDF-fake",
	})

	m := ignore.Build(root, nil)
	files, stats, err := New(root, models.ModeLightweight, m, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	got := paths(files)
	want := []string{"lib/util.go", "main.py"}
	if len(got) != len(want) {
		t.Fatalf("collected %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("collected[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if stats.Collected != 2 {
		t.Errorf("stats.Collected = %d", stats.Collected)
	}
}

func TestCollectPrunesJunkDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app.py":                 "x = 1",
		"node_modules/dep.js":    "module.exports = 1",
		".git/hooks/sample.py":   "hook",
		"venv/lib/site.py":       "site",
		"__pycache__/app.pyc":    "bytecode",
		"sub/.pytest_cache/c.py": "cache",
	})

	m := ignore.Build(root, nil)
	files, _, err := New(root, models.ModeLightweight, m, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(files) != 1 || files[0].Path != "app.py" {
		t.Errorf("collected %v, want only app.py", paths(files))
	}
}

func TestCollectAppliesIgnoreRules(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".clausiignore": "gen_*.py\n",
		"main.py":       "main",
		"gen_models.py": "generated",
	})

	m := ignore.Build(root, nil)
	files, stats, err := New(root, models.ModeLightweight, m, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(files) != 1 || files[0].Path != "main.py" {
		t.Errorf("collected %v", paths(files))
	}
	if stats.SkippedIgnored != 1 {
		t.Errorf("SkippedIgnored = %d, want 1", stats.SkippedIgnored)
	}
}

func TestCollectNegationReachesIntoIgnoredDir(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".clausiignore": "build/\n!build/keep.py\n",
		"build/out.py":  "out",
		"build/keep.py": "keep",
		"src/main.py":   "main",
	})

	m := ignore.Build(root, nil)
	files, _, err := New(root, models.ModeLightweight, m, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	got := paths(files)
	want := []string{"build/keep.py", "src/main.py"}
	if len(got) != len(want) {
		t.Fatalf("collected %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("collected[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCollectDeepModeIncludesEvidenceDocs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":    "print('hi')",
		"broken.pdf": "not really a pdf",
	})
	wb := excelize.NewFile()
	wb.SetCellValue("Sheet1", "A1", "retention policy")
	if err := wb.SaveAs(filepath.Join(root, "controls.xlsx")); err != nil {
		t.Fatal(err)
	}

	m := ignore.Build(root, nil)
	files, _, err := New(root, models.ModeDeep, m, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	// The unreadable pdf is skipped with a warning, not fatal.
	got := paths(files)
	want := []string{"controls.xlsx", "main.py"}
	if len(got) != len(want) {
		t.Fatalf("collected %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("collected[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	for _, f := range files {
		if f.Path == "controls.xlsx" && !strings.Contains(f.Content, "retention policy") {
			t.Errorf("xlsx content not extracted: %q", f.Content)
		}
	}
}

func TestCollectOversizeSkipped(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"small.py": "ok"})
	big := bytes.Repeat([]byte("a"), MaxFileBytes+1)
	if err := os.WriteFile(filepath.Join(root, "big.py"), big, 0o644); err != nil {
		t.Fatal(err)
	}

	m := ignore.Build(root, nil)
	files, stats, err := New(root, models.ModeLightweight, m, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(files) != 1 || files[0].Path != "small.py" {
		t.Errorf("collected %v", paths(files))
	}
	if stats.SkippedSize != 1 {
		t.Errorf("SkippedSize = %d, want 1", stats.SkippedSize)
	}
}

func TestCollectCancellation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "a", "b.py": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := ignore.Build(root, nil)
	_, _, err := New(root, models.ModeLightweight, m, nil).Collect(ctx)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestCollectDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"z.py":       "z",
		"a.py":       "a",
		"mid/b.py":   "b",
		"mid/a.py":   "a",
		"aa/deep.py": "d",
	})

	m := ignore.Build(root, nil)
	c := New(root, models.ModeLightweight, m, nil)

	first, _, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Path >= first[i].Path {
			t.Fatalf("unsorted payload: %v", paths(first))
		}
	}

	second, _, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("runs differ in size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Errorf("order not stable at %d: %q vs %q", i, first[i].Path, second[i].Path)
		}
	}
}
