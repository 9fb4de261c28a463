package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service and the CLI.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Reviews    ReviewsConfig    `yaml:"reviews"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Cache      CacheConfig      `yaml:"cache"`
	Sheets     SheetsConfig     `yaml:"sheets"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
	Locale     string           `yaml:"default_locale"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ReviewsConfig points at the review dataset. S3 takes precedence over Path when a bucket is set.
type ReviewsConfig struct {
	Path     string `yaml:"path"`
	Column   string `yaml:"column"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Key    string `yaml:"s3_key"`
	S3Region string `yaml:"s3_region"`
}

// ClassifierConfig configures the hosted sentiment model.
type ClassifierConfig struct {
	APIToken   string        `yaml:"api_token"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Disable    bool          `yaml:"disable"`

	// LexiconPath optionally replaces the built-in offline word lists.
	LexiconPath string `yaml:"lexicon_path"`
}

// CacheConfig configures the classification cache. Redis is optional.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// SheetsConfig configures the spreadsheet webhook used for best-effort logging.
type SheetsConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
	QueueSize  int           `yaml:"queue_size"`
	MaxRetries int           `yaml:"max_retries"`
}

// StoreConfig configures the local analysis history.
type StoreConfig struct {
	DBPath string `yaml:"db_path"`
	Silent bool   `yaml:"silent"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads an optional YAML file, then a .env file if present, then applies
// environment overrides. An empty path skips the YAML step.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "2000"
	}
	if c.Reviews.Path == "" {
		c.Reviews.Path = "reviews_test.tsv"
	}
	if c.Reviews.Column == "" {
		c.Reviews.Column = "text"
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = 30 * time.Second
	}
	if c.Classifier.MaxRetries <= 0 {
		c.Classifier.MaxRetries = 3
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Sheets.Timeout <= 0 {
		c.Sheets.Timeout = 10 * time.Second
	}
	if c.Sheets.QueueSize <= 0 {
		c.Sheets.QueueSize = 64
	}
	if c.Sheets.MaxRetries <= 0 {
		c.Sheets.MaxRetries = 2
	}
	if c.Store.DBPath == "" {
		c.Store.DBPath = "data/review-sentiment.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Reviews.S3Bucket != "" && c.Reviews.S3Key == "" {
		return errors.New("reviews.s3_key is required when reviews.s3_bucket is set")
	}
	if url := strings.TrimSpace(c.Sheets.WebhookURL); url != "" &&
		!strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid sheets webhook url %q", url)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	setString(&c.Reviews.Path, "REVIEWS_PATH")
	setString(&c.Reviews.Column, "REVIEWS_COLUMN")
	setString(&c.Reviews.S3Bucket, "REVIEWS_S3_BUCKET")
	setString(&c.Reviews.S3Key, "REVIEWS_S3_KEY")
	setString(&c.Reviews.S3Region, "AWS_REGION")

	setString(&c.Classifier.APIToken, "HF_API_TOKEN")
	setString(&c.Classifier.Model, "HF_MODEL")
	setString(&c.Classifier.BaseURL, "HF_BASE_URL")
	if err := setDuration(&c.Classifier.Timeout, "HF_TIMEOUT"); err != nil {
		return err
	}
	setString(&c.Classifier.LexiconPath, "LEXICON_PATH")
	if v := strings.TrimSpace(os.Getenv("DISABLE_MODEL")); v != "" {
		c.Classifier.Disable = strings.EqualFold(v, "true") || v == "1"
	}

	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	if err := setDuration(&c.Cache.TTL, "CLASSIFIER_CACHE_TTL"); err != nil {
		return err
	}

	setString(&c.Sheets.WebhookURL, "SHEETS_WEBHOOK_URL")
	if err := setDuration(&c.Sheets.Timeout, "SHEETS_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&c.Sheets.QueueSize, "SHEETS_QUEUE_SIZE"); err != nil {
		return err
	}

	setString(&c.Store.DBPath, "DB_PATH")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Locale, "DEFAULT_LOCALE")
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
