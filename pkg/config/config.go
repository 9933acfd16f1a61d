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

// Config holds all configuration options for the cache pipeline. It is
// built once at process start and passed into every component
// constructor; nothing reads the environment after Load returns.
type Config struct {
	// Meta Graph API credentials and targets
	Meta MetaConfig `yaml:"meta" json:"meta"`

	// Database connection
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Object storage for re-hosted thumbnails (optional)
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Sync behaviour
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MetaConfig holds Graph API specific configuration
type MetaConfig struct {
	AccessToken  string   `yaml:"access_token" json:"access_token"`
	APIVersion   string   `yaml:"api_version" json:"api_version"`
	PageIDs      []string `yaml:"page_ids" json:"page_ids"`
	IGAccountIDs []string `yaml:"ig_account_ids" json:"ig_account_ids"`
	AppID        string   `yaml:"app_id" json:"app_id"`
	AppSecret    string   `yaml:"app_secret" json:"app_secret"`
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL string `yaml:"url" json:"url"`
}

// StorageConfig holds S3-compatible object storage settings. Leaving
// Bucket empty disables thumbnail re-hosting.
type StorageConfig struct {
	Endpoint      string `yaml:"endpoint" json:"endpoint"`
	Region        string `yaml:"region" json:"region"`
	Bucket        string `yaml:"bucket" json:"bucket"`
	AccessKey     string `yaml:"access_key" json:"access_key"`
	SecretKey     string `yaml:"secret_key" json:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url" json:"public_base_url"`
	UsePathStyle  bool   `yaml:"use_path_style" json:"use_path_style"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// SyncConfig holds fetch window and orchestration settings
type SyncConfig struct {
	LookbackDays int `yaml:"lookback_days" json:"lookback_days"`
	// StrictWindow disables the reverse-chronological early break and
	// scans the full lookback window on every pass.
	StrictWindow bool `yaml:"strict_window" json:"strict_window"`
	// ProgressInterval is how many records between progress callbacks
	ProgressInterval int `yaml:"progress_interval" json:"progress_interval"`
	// ConcurrentAccounts bounds the account worker pool (1 = sequential)
	ConcurrentAccounts int `yaml:"concurrent_accounts" json:"concurrent_accounts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Meta: MetaConfig{
			APIVersion: "v20.0",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 180,
			MaxRetries:        5,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        60 * time.Second,
			RequestTimeout:    30 * time.Second,
		},
		Sync: SyncConfig{
			LookbackDays:       45,
			ProgressInterval:   50,
			ConcurrentAccounts: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// a .env file if present, and process environment variables, in that
// order of increasing precedence.
func Load(path string) (*Config, error) {
	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
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
	locations := []string{
		".metacache.yaml",
		".metacache.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "metacache", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "metacache", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("META_ACCESS_TOKEN"); token != "" {
		c.Meta.AccessToken = token
	}
	if version := os.Getenv("META_API_VERSION"); version != "" {
		c.Meta.APIVersion = version
	}
	if ids := os.Getenv("FB_PAGE_IDS"); ids != "" {
		c.Meta.PageIDs = splitIDs(ids)
	}
	if ids := os.Getenv("IG_ACCOUNT_IDS"); ids != "" {
		c.Meta.IGAccountIDs = splitIDs(ids)
	}
	if appID := os.Getenv("META_APP_ID"); appID != "" {
		c.Meta.AppID = appID
	}
	if secret := os.Getenv("META_APP_SECRET"); secret != "" {
		c.Meta.AppSecret = secret
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}

	if endpoint := os.Getenv("STORAGE_ENDPOINT"); endpoint != "" {
		c.Storage.Endpoint = endpoint
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		c.Storage.Bucket = bucket
	}
	if key := os.Getenv("STORAGE_ACCESS_KEY"); key != "" {
		c.Storage.AccessKey = key
	}
	if key := os.Getenv("STORAGE_SECRET_KEY"); key != "" {
		c.Storage.SecretKey = key
	}
	if base := os.Getenv("STORAGE_PUBLIC_BASE_URL"); base != "" {
		c.Storage.PublicBaseURL = base
	}

	if days := os.Getenv("LOOKBACK_DAYS"); days != "" {
		val, err := strconv.Atoi(days)
		if err != nil {
			return fmt.Errorf("invalid LOOKBACK_DAYS: %w", err)
		}
		c.Sync.LookbackDays = val
	}
	if strict := os.Getenv("STRICT_WINDOW"); strict != "" {
		c.Sync.StrictWindow = strings.ToLower(strict) == "true"
	}
	if rpm := os.Getenv("REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("invalid REQUESTS_PER_MINUTE: %w", err)
		}
		c.RateLimit.RequestsPerMinute = val
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Meta.AccessToken == "" {
		errs = append(errs, errors.New("meta access token is required (META_ACCESS_TOKEN)"))
	}
	if c.Meta.APIVersion == "" {
		errs = append(errs, errors.New("meta API version is required"))
	}
	if len(c.Meta.PageIDs) == 0 && len(c.Meta.IGAccountIDs) == 0 {
		errs = append(errs, errors.New("at least one page or IG account ID is required (FB_PAGE_IDS / IG_ACCOUNT_IDS)"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database URL is required (DATABASE_URL)"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MaxRetries <= 0 {
		errs = append(errs, errors.New("max retries must be positive"))
	}
	if c.Sync.LookbackDays <= 0 {
		errs = append(errs, errors.New("lookback days must be positive"))
	}
	if c.Sync.ConcurrentAccounts <= 0 {
		errs = append(errs, errors.New("concurrent accounts must be positive"))
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// StorageEnabled reports whether thumbnail re-hosting is configured.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != "" && c.Storage.AccessKey != "" && c.Storage.SecretKey != ""
}

// MaskedToken returns the access token safe for logging (first 4 and
// last 4 characters).
func (c *Config) MaskedToken() string {
	token := c.Meta.AccessToken
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
