package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/earosenfeld/clausi-cli/internal/models"
)

// MaxFileBytes caps what one file may contribute to the payload. Larger
// files are skipped and counted, never silently truncated.
const MaxFileBytes = 1 << 20

// Hard-excluded directory names, pruned before ignore rules even apply.
var excludedDirs = map[string]bool{
	"venv":          true,
	".git":          true,
	"__pycache__":   true,
	"node_modules":  true,
	".mypy_cache":   true,
	".pytest_cache": true,
}

var excludedFiles = map[string]bool{".DS_Store": true}

var excludedSuffixes = []string{".pyc", ".pyo", ".egg-info"}

var sourceExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".java": true,
	".cpp": true, ".h": true, ".hpp": true, ".c": true,
	".cs": true, ".go": true, ".rs": true, ".swift": true,
}

// Evidence documents only join the submit set in deep mode.
var documentExtensions = map[string]bool{".pdf": true, ".xlsx": true}

func (c *Collector) wantsExtension(ext string) bool {
	if sourceExtensions[ext] {
		return true
	}
	return c.mode == models.ModeDeep && documentExtensions[ext]
}

func hasExcludedSuffix(name string) bool {
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func (c *Collector) walkFiles(ctx context.Context, jobs chan<- string, stats *Stats) error {
	defer close(jobs)

	// Pruning an ignored directory is only safe when no negation rule
	// could re-include something underneath it.
	pruneIgnored := !c.matcher.HasNegations()

	return filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.log.Warnw("cannot access path", "path", path, "err", err)
			return nil
		}
		rel, relErr := filepath.Rel(c.root, path)
		if relErr != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			if pruneIgnored && c.matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		stats.Seen++

		if excludedFiles[d.Name()] || hasExcludedSuffix(d.Name()) {
			return nil
		}
		if !c.wantsExtension(strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		if c.matcher.IsIgnored(rel) {
			stats.SkippedIgnored++
			return nil
		}
		if info, ierr := d.Info(); ierr == nil && info.Size() > MaxFileBytes {
			stats.SkippedSize++
			c.log.Warnw("skipping oversize file", "path", rel, "size", info.Size())
			return nil
		}

		select {
		case <-ctx.Done():
			return filepath.SkipAll
		case jobs <- path:
		}
		return nil
	})
}
