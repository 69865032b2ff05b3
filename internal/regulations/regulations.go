// Package regulations resolves which regulation keys a scan may reference:
// the service catalog, cached on disk, plus user- and project-supplied
// custom definitions.
package regulations

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/earosenfeld/clausi-cli/internal/api"
	"github.com/earosenfeld/clausi-cli/internal/support"
)

const (
	// CacheFileName sits in the user config dir next to config.yml.
	CacheFileName = "regulations_cache.json"

	cacheTTL      = time.Hour
	customDirName = "custom_regulations"
)

// Fallback is the regulation set used when neither cache nor service is
// reachable. It mirrors what the service always offers.
func Fallback() map[string]api.RegulationInfo {
	return map[string]api.RegulationInfo{
		"EU-AIA":    {Code: "EU-AIA", Name: "EU AI Act", Description: "European Union Artificial Intelligence Act"},
		"GDPR":      {Code: "GDPR", Name: "GDPR", Description: "General Data Protection Regulation"},
		"ISO-42001": {Code: "ISO-42001", Name: "ISO 42001", Description: "AI Management System – ISO/IEC 42001:2023"},
		"HIPAA":     {Code: "HIPAA", Name: "HIPAA", Description: "Health Insurance Portability and Accountability Act"},
		"SOC2":      {Code: "SOC2", Name: "SOC 2", Description: "System and Organization Controls Type 2"},
	}
}

type catalogFetcher interface {
	Regulations(ctx context.Context) (map[string]api.RegulationInfo, error)
}

// Registry answers which regulations exist. Lookups degrade rather than
// fail: fresh cache, then the service, then a stale cache, then Fallback.
type Registry struct {
	client catalogFetcher
	dir    string
	log    *zap.SugaredLogger
}

// New builds a registry rooted at the user config dir. client may be nil
// for offline use.
func New(client catalogFetcher, configDir string, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{client: client, dir: configDir, log: log}
}

type cacheFile struct {
	FetchedAt   time.Time                     `json:"fetched_at"`
	Regulations map[string]api.RegulationInfo `json:"regulations"`
}

func (r *Registry) cachePath() string {
	return filepath.Join(r.dir, CacheFileName)
}

// List returns the service catalog. It never fails; the worst case is the
// built-in fallback set.
func (r *Registry) List(ctx context.Context) map[string]api.RegulationInfo {
	cached, age, cacheErr := r.readCache()
	if cacheErr == nil && age < cacheTTL {
		return cached
	}

	if r.client != nil {
		remote, err := r.client.Regulations(ctx)
		if err == nil && len(remote) > 0 {
			r.writeCache(remote)
			return remote
		}
		r.log.Debugw("regulation catalog fetch failed", "err", err)
	}

	if cacheErr == nil && len(cached) > 0 {
		r.log.Debugw("using stale regulation cache", "age", age)
		return cached
	}
	return Fallback()
}

func (r *Registry) readCache() (map[string]api.RegulationInfo, time.Duration, error) {
	data, err := os.ReadFile(r.cachePath())
	if err != nil {
		return nil, 0, err
	}
	var cache cacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, 0, err
	}
	return cache.Regulations, time.Since(cache.FetchedAt), nil
}

func (r *Registry) writeCache(regs map[string]api.RegulationInfo) {
	cache := cacheFile{FetchedAt: time.Now(), Regulations: regs}
	if err := support.WriteJSONAtomic(r.cachePath(), cache); err != nil {
		r.log.Warnw("failed to cache regulation catalog", "err", err)
	}
}

// DiscoverCustom maps custom regulation codes to their YAML definition
// files. Project files (.clausi/regulations under the scan target) override
// user files on a code collision.
func (r *Registry) DiscoverCustom(projectPath string) map[string]string {
	custom := map[string]string{}
	collect := func(dir string) {
		matches, err := filepath.Glob(filepath.Join(dir, "*.yml"))
		if err != nil {
			return
		}
		sort.Strings(matches)
		for _, p := range matches {
			custom[CodeFromFile(p)] = p
		}
	}
	collect(filepath.Join(r.dir, customDirName))
	if projectPath != "" {
		collect(filepath.Join(projectPath, ".clausi", "regulations"))
	}
	return custom
}

// CodeFromFile derives the regulation code from a definition filename:
// data_policy.yml becomes DATA-POLICY.
func CodeFromFile(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ToUpper(strings.ReplaceAll(stem, "_", "-"))
}

// LoadCustom parses one custom regulation definition.
func LoadCustom(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("%s: empty regulation definition", filepath.Base(path))
	}
	return doc, nil
}

// ForScan loads the selected custom regulations for the scan payload. An
// unparseable file is skipped with a warning so one bad definition does not
// sink the whole scan.
func (r *Registry) ForScan(selected []string, projectPath string) []api.CustomRegulation {
	paths := r.DiscoverCustom(projectPath)
	var out []api.CustomRegulation
	for _, code := range selected {
		p, ok := paths[code]
		if !ok {
			continue
		}
		doc, err := LoadCustom(p)
		if err != nil {
			r.log.Warnw("skipping custom regulation", "code", code, "err", err)
			continue
		}
		out = append(out, api.CustomRegulation{Code: code, Content: doc})
	}
	return out
}

// Validate rejects regulation keys that are neither in the catalog nor
// supplied as custom definitions.
func (r *Registry) Validate(ctx context.Context, selected []string, projectPath string) error {
	catalog := r.List(ctx)
	custom := r.DiscoverCustom(projectPath)
	var unknown []string
	for _, code := range selected {
		if _, ok := catalog[code]; ok {
			continue
		}
		if _, ok := custom[code]; ok {
			continue
		}
		unknown = append(unknown, code)
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown regulations: %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(r.Choices(ctx, projectPath), ", "))
	}
	return nil
}

// Choices returns every selectable regulation code, sorted and deduplicated.
func (r *Registry) Choices(ctx context.Context, projectPath string) []string {
	seen := map[string]bool{}
	for code := range r.List(ctx) {
		seen[code] = true
	}
	for code := range r.DiscoverCustom(projectPath) {
		seen[code] = true
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
