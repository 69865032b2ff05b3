package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/earosenfeld/clausi-cli/internal/models"
)

func (c *Collector) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan string, results chan<- result) {
	defer wg.Done()

	for path := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
			results <- c.extract(path)
		}
	}
}

func (c *Collector) extract(path string) result {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return result{path: path, err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return result{path: path, err: err}
	}
	defer f.Close()

	content, err := c.factory.ForFile(path).Extract(f)
	if err != nil {
		return result{path: path, err: err}
	}
	return result{payload: models.FilePayload{
		Path:    filepath.ToSlash(rel),
		Content: content,
	}}
}
