// Package config loads and validates the immutable configuration for a
// conformity audit run. Configuration is read once from a YAML file with
// optional environment overrides and then threaded explicitly through every
// component; nothing reads ambient process state after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for one audit run.
type Config struct {
	Portal  PortalConfig  `yaml:"portal"`
	Gazette GazetteConfig `yaml:"gazette"`
	Extract ExtractConfig `yaml:"extract"`
	Browser BrowserConfig `yaml:"browser"`
	Run     RunConfig     `yaml:"run"`
}

// PortalConfig controls discovery on the contracts portal.
type PortalConfig struct {
	BaseURL string `yaml:"base_url"`

	// FilterYear restricts discovery to contracts of this reference year.
	FilterYear int `yaml:"filter_year"`

	// TimeoutSeconds bounds each portal interaction (render wait, scroll pass).
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MinSettleMillis is the minimum time the portal's rendering engine needs
	// before a re-render can be trusted, even when polling reports stability.
	MinSettleMillis int `yaml:"min_settle_millis"`

	// MaxScrollPasses bounds RowCollector passes before giving up.
	MaxScrollPasses int `yaml:"max_scroll_passes"`
}

// GazetteConfig controls publication search on the gazette portal.
type GazetteConfig struct {
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds each gazette interaction.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// CaptchaAutoAttempts is the number of automated solver attempts before
	// suspending for manual resolution.
	CaptchaAutoAttempts int `yaml:"captcha_auto_attempts"`

	// CaptchaManualTimeout bounds the wait for a human to clear the gate.
	CaptchaManualTimeout time.Duration `yaml:"captcha_manual_timeout"`

	// MaxCandidates bounds how many ranked results are downloaded and checked.
	MaxCandidates int `yaml:"max_candidates"`

	// MaxResultPages bounds result pagination.
	MaxResultPages int `yaml:"max_result_pages"`
}

// ExtractConfig configures the structured-extraction adapter.
type ExtractConfig struct {
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the service key.
	// The key itself never appears in config files.
	APIKeyEnv string `yaml:"api_key_env"`

	Timeout time.Duration `yaml:"timeout"`
}

// BrowserConfig controls the shared Chrome session.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty = launch local.
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
}

// RunConfig controls batch behaviour and persistence paths.
type RunConfig struct {
	DataDir        string `yaml:"data_dir"`
	TempDir        string `yaml:"temp_dir"`
	CheckpointPath string `yaml:"checkpoint_path"`
	LedgerPath     string `yaml:"ledger_path"`

	// MaxCompanies limits how many companies are processed. 0 = no limit.
	MaxCompanies int `yaml:"max_companies"`

	// CompanyCSV optionally seeds the company set instead of portal discovery.
	CompanyCSV string `yaml:"company_csv"`

	LogLevel string `yaml:"log_level"`
}

func (c *Config) defaults() {
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = "https://contasrio.tcm.rj.gov.br"
	}
	if c.Portal.FilterYear == 0 {
		c.Portal.FilterYear = time.Now().Year()
	}
	if c.Portal.TimeoutSeconds <= 0 {
		c.Portal.TimeoutSeconds = 20
	}
	if c.Portal.MinSettleMillis <= 0 {
		c.Portal.MinSettleMillis = 800
	}
	if c.Portal.MaxScrollPasses <= 0 {
		c.Portal.MaxScrollPasses = 25
	}
	if c.Gazette.BaseURL == "" {
		c.Gazette.BaseURL = "https://doweb.rio.rj.gov.br"
	}
	if c.Gazette.TimeoutSeconds <= 0 {
		c.Gazette.TimeoutSeconds = 20
	}
	if c.Gazette.CaptchaAutoAttempts <= 0 {
		c.Gazette.CaptchaAutoAttempts = 3
	}
	if c.Gazette.CaptchaManualTimeout <= 0 {
		c.Gazette.CaptchaManualTimeout = 5 * time.Minute
	}
	if c.Gazette.MaxCandidates <= 0 {
		c.Gazette.MaxCandidates = 5
	}
	if c.Gazette.MaxResultPages <= 0 {
		c.Gazette.MaxResultPages = 3
	}
	if c.Extract.Model == "" {
		c.Extract.Model = "gemini-2.0-flash"
	}
	if c.Extract.APIKeyEnv == "" {
		c.Extract.APIKeyEnv = "GENAI_API_KEY"
	}
	if c.Extract.Timeout <= 0 {
		c.Extract.Timeout = 60 * time.Second
	}
	if c.Run.DataDir == "" {
		c.Run.DataDir = "data"
	}
	if c.Run.TempDir == "" {
		c.Run.TempDir = "data/temp"
	}
	if c.Run.CheckpointPath == "" {
		c.Run.CheckpointPath = "data/checkpoint.json"
	}
	if c.Run.LedgerPath == "" {
		c.Run.LedgerPath = "data/ledger.db"
	}
	if c.Run.LogLevel == "" {
		c.Run.LogLevel = "info"
	}
}

// Load reads a YAML configuration file, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides select fields from the environment. Only called during
// Load; components never consult the environment themselves.
func (c *Config) applyEnv() {
	if v := os.Getenv("FILTER_YEAR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Portal.FilterYear = n
		}
	}
	if v := os.Getenv("TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Portal.TimeoutSeconds = n
			c.Gazette.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Run.DataDir = v
	}
}

// Validate reports configuration errors. These are fatal to the run and map
// to exit code 2 at the CLI.
func (c *Config) Validate() error {
	if c.Portal.FilterYear < 1990 || c.Portal.FilterYear > 2100 {
		return fmt.Errorf("config: filter_year %d out of range", c.Portal.FilterYear)
	}
	if c.Portal.TimeoutSeconds <= 0 || c.Gazette.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: timeout_seconds must be positive")
	}
	if c.Run.MaxCompanies < 0 {
		return fmt.Errorf("config: max_companies must not be negative")
	}
	return nil
}

// PortalTimeout returns the per-interaction wait bound for the portal.
func (c *Config) PortalTimeout() time.Duration {
	return time.Duration(c.Portal.TimeoutSeconds) * time.Second
}

// GazetteTimeout returns the per-interaction wait bound for the gazette.
func (c *Config) GazetteTimeout() time.Duration {
	return time.Duration(c.Gazette.TimeoutSeconds) * time.Second
}

// MinSettle returns the minimum render settle time for the portal.
func (c *Config) MinSettle() time.Duration {
	return time.Duration(c.Portal.MinSettleMillis) * time.Millisecond
}
