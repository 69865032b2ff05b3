// Package scanner walks a project tree and collects the files a scan
// submits: directory pruning, ignore rules, a per-mode extension filter,
// then content extraction, joined into a deterministic payload order.
package scanner

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/earosenfeld/clausi-cli/internal/extractor"
	"github.com/earosenfeld/clausi-cli/internal/ignore"
	"github.com/earosenfeld/clausi-cli/internal/models"
)

// Stats summarizes one collection walk.
type Stats struct {
	Seen           int
	SkippedIgnored int
	SkippedSize    int
	Collected      int
	Bytes          int64
}

// Collector gathers the submit set for one scan invocation.
type Collector struct {
	root    string
	mode    models.ScanMode
	matcher *ignore.Matcher
	factory *extractor.Factory
	workers int
	log     *zap.SugaredLogger
}

func New(root string, mode models.ScanMode, matcher *ignore.Matcher, log *zap.SugaredLogger) *Collector {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Collector{
		root:    root,
		mode:    mode,
		matcher: matcher,
		factory: extractor.NewFactory(),
		workers: runtime.NumCPU(),
		log:     log,
	}
}

type result struct {
	payload models.FilePayload
	path    string
	err     error
}

// Collect walks the tree with a worker pool and returns the payload files
// sorted by relative path. Matching is a pure function of the path, so the
// workers only extract; selection happens on the walking goroutine.
func (c *Collector) Collect(ctx context.Context) ([]models.FilePayload, Stats, error) {
	jobs := make(chan string, c.workers*4)
	results := make(chan result, c.workers*4)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go c.worker(ctx, &wg, jobs, results)
	}

	var stats Stats
	walkDone := make(chan error, 1)
	go func() {
		walkDone <- c.walkFiles(ctx, jobs, &stats)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var files []models.FilePayload
	var collectedBytes int64
	for res := range results {
		if res.err != nil {
			c.log.Warnw("skipping unreadable file", "path", res.path, "err", res.err)
			continue
		}
		files = append(files, res.payload)
		collectedBytes += int64(len(res.payload.Content))
	}
	walkErr := <-walkDone

	stats.Collected = len(files)
	stats.Bytes = collectedBytes

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	if walkErr != nil {
		return nil, stats, walkErr
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	c.log.Infow("files collected",
		"seen", stats.Seen,
		"collected", stats.Collected,
		"skipped_ignored", stats.SkippedIgnored,
		"skipped_oversize", stats.SkippedSize)
	return files, stats, nil
}
