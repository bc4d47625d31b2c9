package model

import "time"

// Config is the complete hazardlog configuration.
// Defaults come from DefaultConfig; the CLI overlays the config file, HAZARDLOG_* env vars and flags.
type Config struct {
	Store        StoreConfig       `yaml:"store" mapstructure:"store"`
	Retention    RetentionConfig   `yaml:"retention" mapstructure:"retention"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Sources      []SourceConfig    `yaml:"sources" mapstructure:"sources"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
}

// StoreConfig locates the canonical dataset.
type StoreConfig struct {
	ActivePath  string `yaml:"active_path" mapstructure:"active_path"`
	ArchivePath string `yaml:"archive_path" mapstructure:"archive_path"`
	BackupDir   string `yaml:"backup_dir" mapstructure:"backup_dir"`
}

// RetentionConfig controls aging and snapshot pruning.
type RetentionConfig struct {
	ActiveWindow     time.Duration `yaml:"active_window" mapstructure:"active_window"`
	KeepSnapshots    int           `yaml:"keep_snapshots" mapstructure:"keep_snapshots"`
	KeepRunSnapshots int           `yaml:"keep_run_snapshots" mapstructure:"keep_run_snapshots"`
	RunIDEnv         string        `yaml:"run_id_env" mapstructure:"run_id_env"` // env var holding the CI run number
}

// HTTPConfig configures the http collector transport.
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the collector response cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig configures per-host request pacing.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig bounds collector parallelism.
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// Source types.
const (
	SourceTypeFile = "file"
	SourceTypeHTTP = "http"
)

// SourceConfig declares one collector.
type SourceConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Type     string `yaml:"type" mapstructure:"type"`           // file | http
	Path     string `yaml:"path,omitempty" mapstructure:"path"` // glob, file sources
	URL      string `yaml:"url,omitempty" mapstructure:"url"`   // http sources
	Provider string `yaml:"provider,omitempty" mapstructure:"provider"`
}

// OutputConfig controls run report rendering.
type OutputConfig struct {
	ReportPath   string `yaml:"report_path" mapstructure:"report_path"`
	MarkdownPath string `yaml:"markdown_path,omitempty" mapstructure:"markdown_path"`
	MetricsPath  string `yaml:"metrics_path,omitempty" mapstructure:"metrics_path"`
	Verbose      bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LLMConfig configures the optional run digest.
type LLMConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // "" disables
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKey    string        `yaml:"-" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			ActivePath:  "docs/data/events.json",
			ArchivePath: "docs/data/past_events.json",
			BackupDir:   "docs/data/backups",
		},
		Retention: RetentionConfig{
			ActiveWindow:     30 * 24 * time.Hour,
			KeepSnapshots:    5,
			KeepRunSnapshots: 10,
			RunIDEnv:         "GITHUB_RUN_NUMBER",
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "hazardlog/0.1 (+https://github.com/ppiankov/hazardlog)",
			MaxBodyBytes:  20_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".hazardlog-cache",
			MemoryTTL: 5 * time.Minute,
			DiskTTL:   15 * time.Minute,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			ReportPath: "docs/data/report.json",
		},
		LLM: LLMConfig{
			Timeout:   30 * time.Second,
			MaxTokens: 800,
		},
	}
}
