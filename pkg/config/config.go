package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "HOOPSCRAPER_"

// Config holds all configuration options for a scrape run
type Config struct {
	// Scope of the requests sent to the stats API
	Season      string `yaml:"season" json:"season"`
	SeasonType  string `yaml:"season_type" json:"season_type"`
	OutputPath  string `yaml:"output_path" json:"output_path"`
	RateLimitMS int    `yaml:"rate_limit_ms" json:"rate_limit_ms"`

	Subjects   SubjectsConfig   `yaml:"subjects_filter" json:"subjects_filter"`
	Stats      StatsConfig      `yaml:"stats" json:"stats"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Shots      ShotsConfig      `yaml:"shots" json:"shots"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SubjectsConfig selects which players are fetched
type SubjectsConfig struct {
	ActiveOnly   bool     `yaml:"active_only" json:"active_only"`
	IDs          []string `yaml:"ids" json:"ids"`
	NameContains string   `yaml:"name_contains" json:"name_contains"`
	Limit        int      `yaml:"limit" json:"limit"`
	// PlayersFile replaces the live player list with a static JSON file
	PlayersFile string `yaml:"players_file" json:"players_file"`
}

// StatsConfig configures the HTTP client for the stats API
type StatsConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	LeagueID  string        `yaml:"league_id" json:"league_id"`
	// CacheTTL enables in-memory response caching for reference data
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// RateLimitConfig selects the limiter placed in front of every API call
type RateLimitConfig struct {
	Strategy          string `yaml:"strategy" json:"strategy"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig bounds retries of transient fetch failures
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// CheckpointConfig controls periodic saving of accumulated results
type CheckpointConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
	Interval  int    `yaml:"interval" json:"interval"`
}

// OutputConfig controls how the aggregate table is persisted
type OutputConfig struct {
	FailOnFailure  bool `yaml:"fail_on_failure" json:"fail_on_failure"`
	FailuresReport bool `yaml:"failures_report" json:"failures_report"`
}

// ShotsConfig holds filters specific to the shot chart endpoint
type ShotsConfig struct {
	ContextMeasure string `yaml:"context_measure" json:"context_measure"`
	DateFrom       string `yaml:"date_from" json:"date_from"`
	DateTo         string `yaml:"date_to" json:"date_to"`
}

// MetricsConfig exposes Prometheus metrics while a run is in progress
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Season:      "2022-23",
		SeasonType:  "Regular Season",
		OutputPath:  "",
		RateLimitMS: 600,
		Subjects: SubjectsConfig{
			ActiveOnly: true,
		},
		Stats: StatsConfig{
			BaseURL:   "https://stats.nba.com",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:   30 * time.Second,
			LeagueID:  "00",
			CacheTTL:  0,
		},
		RateLimit: RateLimitConfig{
			Strategy:          "fixed",
			RequestsPerMinute: 100,
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		Checkpoint: CheckpointConfig{
			Enabled:  true,
			Interval: 25,
		},
		Output: OutputConfig{
			FailOnFailure:  false,
			FailuresReport: true,
		},
		Shots: ShotsConfig{
			ContextMeasure: "FGA",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// RateLimitInterval returns the fixed pause between API calls
func (c *Config) RateLimitInterval() time.Duration {
	return time.Duration(c.RateLimitMS) * time.Millisecond
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "SEASON"); v != "" {
		c.Season = v
	}
	if v := os.Getenv(envPrefix + "SEASON_TYPE"); v != "" {
		c.SeasonType = v
	}
	if v := os.Getenv(envPrefix + "OUTPUT_PATH"); v != "" {
		c.OutputPath = v
	}
	if v := os.Getenv(envPrefix + "RATE_LIMIT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_LIMIT_MS: %w", envPrefix, err))
		} else {
			c.RateLimitMS = ms
		}
	}
	if v := os.Getenv(envPrefix + "PLAYERS_FILE"); v != "" {
		c.Subjects.PlayersFile = v
	}
	if v := os.Getenv(envPrefix + "PLAYER_IDS"); v != "" {
		c.Subjects.IDs = splitList(v)
	}
	if v := os.Getenv(envPrefix + "BASE_URL"); v != "" {
		c.Stats.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.Stats.UserAgent = v
	}
	if v := os.Getenv(envPrefix + "MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_RETRIES: %w", envPrefix, err))
		} else {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv(envPrefix + "CHECKPOINT_DIR"); v != "" {
		c.Checkpoint.Directory = v
	}
	if v := os.Getenv(envPrefix + "METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".hoopscraper.yaml",
		".hoopscraper.yml",
		filepath.Join(home, ".config", "hoopscraper", "config.yaml"),
		filepath.Join(home, ".config", "hoopscraper", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Season) == "" {
		errs = append(errs, errors.New("season is required"))
	}
	if c.RateLimitMS < 0 {
		errs = append(errs, errors.New("rate_limit_ms cannot be negative"))
	}
	if c.Stats.BaseURL == "" {
		errs = append(errs, errors.New("stats base URL is required"))
	}
	if c.Stats.Timeout <= 0 {
		errs = append(errs, errors.New("stats timeout must be positive"))
	}
	if c.Subjects.Limit < 0 {
		errs = append(errs, errors.New("subjects limit cannot be negative"))
	}

	validStrategies := map[string]bool{
		"fixed": true, "token_bucket": true, "sliding_window": true, "none": true,
	}
	if !validStrategies[strings.ToLower(c.RateLimit.Strategy)] {
		errs = append(errs, fmt.Errorf("invalid rate limit strategy %q", c.RateLimit.Strategy))
	}
	if c.RateLimit.Strategy != "fixed" && c.RateLimit.Strategy != "none" && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Checkpoint.Interval < 1 {
		errs = append(errs, errors.New("checkpoint interval must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["season"].(string); ok && v != "" {
		c.Season = v
	}
	if v, ok := flags["season-type"].(string); ok && v != "" {
		c.SeasonType = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.OutputPath = v
	}
	if v, ok := flags["rate-limit-ms"].(int); ok && v >= 0 {
		c.RateLimitMS = v
	}
	if v, ok := flags["rate-limit-strategy"].(string); ok && v != "" {
		c.RateLimit.Strategy = v
	}
	if v, ok := flags["players-file"].(string); ok && v != "" {
		c.Subjects.PlayersFile = v
	}
	if v, ok := flags["player-ids"].([]string); ok && len(v) > 0 {
		c.Subjects.IDs = v
	}
	if v, ok := flags["name-contains"].(string); ok && v != "" {
		c.Subjects.NameContains = v
	}
	if v, ok := flags["include-inactive"].(bool); ok && v {
		c.Subjects.ActiveOnly = false
	}
	if v, ok := flags["limit"].(int); ok && v > 0 {
		c.Subjects.Limit = v
	}
	if v, ok := flags["max-retries"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["no-checkpoint"].(bool); ok && v {
		c.Checkpoint.Enabled = false
	}
	if v, ok := flags["fail-on-failure"].(bool); ok && v {
		c.Output.FailOnFailure = true
	}
	if v, ok := flags["context-measure"].(string); ok && v != "" {
		c.Shots.ContextMeasure = v
	}
	if v, ok := flags["date-from"].(string); ok && v != "" {
		c.Shots.DateFrom = v
	}
	if v, ok := flags["date-to"].(string); ok && v != "" {
		c.Shots.DateTo = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".hoopscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
