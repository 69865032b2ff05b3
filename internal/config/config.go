package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/earosenfeld/clausi-cli/internal/support"
)

// Config mirrors ~/.clausi/config.yml.
type Config struct {
	API         APIConfig         `yaml:"api"`
	AI          AIConfig          `yaml:"ai"`
	APIKeys     APIKeysConfig     `yaml:"api_keys"`
	Report      ReportConfig      `yaml:"report"`
	Regulations RegulationsConfig `yaml:"regulations"`
	UI          UIConfig          `yaml:"ui"`
}

type APIConfig struct {
	URL        string `yaml:"url"`
	Timeout    int    `yaml:"timeout"` // seconds, per request
	MaxRetries int    `yaml:"max_retries"`
}

type AIConfig struct {
	Provider string `yaml:"provider"` // clausi, claude or openai
	Model    string `yaml:"model"`
}

type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
}

type ReportConfig struct {
	Format      string `yaml:"format"`
	OutputDir   string `yaml:"output_dir"`
	Template    string `yaml:"template"`
	CompanyName string `yaml:"company_name"`
	CompanyLogo string `yaml:"company_logo"`
}

type RegulationsConfig struct {
	Selected []string `yaml:"selected"`
}

type UIConfig struct {
	AutoOpenFindings bool `yaml:"auto_open_findings"`
	ShowCacheStats   bool `yaml:"show_cache_stats"`
}

// Flags carries the CLI-level overrides into Resolve. Zero values mean
// "not set on the command line".
type Flags struct {
	ConfigDir   string
	APIURL      string
	Timeout     int
	Provider    string
	Model       string
	Format      string
	OutputDir   string
	Template    string
	CompanyName string
	CompanyLogo string
	Regulations []string
}

// Default returns the compiled-in defaults.
func Default() Config {
	return Config{
		API: APIConfig{
			URL:        "https://api.clausi.ai",
			Timeout:    300,
			MaxRetries: 3,
		},
		AI: AIConfig{
			Provider: "claude",
			Model:    "claude-3-5-sonnet-20241022",
		},
		Report: ReportConfig{
			Format:    "pdf",
			OutputDir: filepath.Join("clausi", "reports"),
			Template:  "default",
		},
		Regulations: RegulationsConfig{
			Selected: []string{"EU-AIA"},
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
// An explicit override wins; otherwise ~/.clausi.
func Dir(override string) (string, error) {
	dir := override
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".clausi")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Path returns the config file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, "config.yml")
}

// Load reads a YAML config from disk.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config atomically.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return support.WriteFileAtomic(path, data)
}

// ProviderKey returns the BYOK key matching the active provider, empty
// for the hosted default.
func (c Config) ProviderKey() string {
	switch c.AI.Provider {
	case "claude":
		return c.APIKeys.Anthropic
	case "openai":
		return c.APIKeys.OpenAI
	default:
		return ""
	}
}

// LoadOrDefault reads the config file with defaults filled in; a missing
// file yields the plain defaults. Used by `config set`, which must edit
// the file without baking environment overrides into it.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Default(), nil
	}
	loaded, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	defaults := Default()
	mergeConfigDefaults(&loaded, &defaults)
	return loaded, nil
}

// Resolve applies precedence for every overridable setting:
// CLI flag > environment variable > config file > built-in default.
// Returns the effective config, the config file path (empty when none was
// found) and non-fatal warnings.
func Resolve(flags Flags) (Config, string, []string, error) {
	cfg := Default()
	var cfgPath string
	var warnings []string

	dir, err := Dir(flags.ConfigDir)
	if err != nil {
		return Config{}, "", nil, err
	}
	path := Path(dir)
	if _, err := os.Stat(path); err == nil {
		loaded, err := Load(path)
		if err != nil {
			return Config{}, "", nil, err
		}
		defaults := Default()
		mergeConfigDefaults(&loaded, &defaults)
		cfg = loaded
		cfgPath = path
	}

	applyEnv(&cfg)
	applyFlags(&cfg, flags)

	if err := cfg.Validate(); err != nil {
		return Config{}, "", nil, err
	}
	return cfg, cfgPath, warnings, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CLAUSI_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.APIKeys.Anthropic = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.APIKeys.OpenAI = v
	}
}

func applyFlags(cfg *Config, flags Flags) {
	if flags.APIURL != "" {
		cfg.API.URL = flags.APIURL
	}
	if flags.Timeout > 0 {
		cfg.API.Timeout = flags.Timeout
	}
	if flags.Provider != "" {
		cfg.AI.Provider = flags.Provider
	}
	if flags.Model != "" {
		cfg.AI.Model = flags.Model
	}
	if flags.Format != "" {
		cfg.Report.Format = flags.Format
	}
	if flags.OutputDir != "" {
		cfg.Report.OutputDir = flags.OutputDir
	}
	if flags.Template != "" {
		cfg.Report.Template = flags.Template
	}
	if flags.CompanyName != "" {
		cfg.Report.CompanyName = flags.CompanyName
	}
	if flags.CompanyLogo != "" {
		cfg.Report.CompanyLogo = flags.CompanyLogo
	}
	if len(flags.Regulations) > 0 {
		cfg.Regulations.Selected = flags.Regulations
	}
}

// Validate checks the resolved configuration for consistency.
func (c *Config) Validate() error {
	switch c.Report.Format {
	case "pdf", "html", "json", "all":
	default:
		return fmt.Errorf("unknown report format %q (expected pdf, html, json or all)", c.Report.Format)
	}
	switch c.AI.Provider {
	case "clausi", "claude", "openai":
	default:
		return fmt.Errorf("unknown provider %q (expected clausi, claude or openai)", c.AI.Provider)
	}
	if c.API.URL == "" {
		return fmt.Errorf("api.url must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %d", c.API.Timeout)
	}
	if c.Report.Template == "" {
		return fmt.Errorf("report.template must not be empty")
	}
	return nil
}

func mergeConfigDefaults(cfg *Config, defaults *Config) {
	if cfg.API.URL == "" {
		cfg.API.URL = defaults.API.URL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = defaults.API.Timeout
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = defaults.API.MaxRetries
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = defaults.AI.Provider
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaults.AI.Model
	}
	if cfg.Report.Format == "" {
		cfg.Report.Format = defaults.Report.Format
	}
	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = defaults.Report.OutputDir
	}
	if cfg.Report.Template == "" {
		cfg.Report.Template = defaults.Report.Template
	}
	if len(cfg.Regulations.Selected) == 0 {
		cfg.Regulations.Selected = defaults.Regulations.Selected
	}
}

// Set assigns a single value by dotted key, for `clausi config set`.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api.url":
		c.API.URL = value
	case "api.timeout":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("api.timeout wants an integer: %w", err)
		}
		c.API.Timeout = n
	case "api.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("api.max_retries wants an integer: %w", err)
		}
		c.API.MaxRetries = n
	case "ai.provider":
		c.AI.Provider = value
	case "ai.model":
		c.AI.Model = value
	case "api_keys.anthropic":
		c.APIKeys.Anthropic = value
	case "api_keys.openai":
		c.APIKeys.OpenAI = value
	case "report.format":
		c.Report.Format = value
	case "report.output_dir":
		c.Report.OutputDir = value
	case "report.template":
		c.Report.Template = value
	case "report.company_name":
		c.Report.CompanyName = value
	case "report.company_logo":
		c.Report.CompanyLogo = value
	case "regulations.selected":
		var sel []string
		for _, r := range strings.Split(value, ",") {
			if r = strings.TrimSpace(r); r != "" {
				sel = append(sel, r)
			}
		}
		c.Regulations.Selected = sel
	case "ui.auto_open_findings":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("ui.auto_open_findings wants a boolean: %w", err)
		}
		c.UI.AutoOpenFindings = b
	case "ui.show_cache_stats":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("ui.show_cache_stats wants a boolean: %w", err)
		}
		c.UI.ShowCacheStats = b
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return c.Validate()
}
