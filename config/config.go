// Package config loads the expopulse service configuration from a YAML
// file and environment variables. Later sources override earlier ones:
// defaults, then the config file, then EXPOPULSE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xowlabs/expopulse/pkg/llm"
)

// Default configuration values.
const (
	DefaultConfigPath  = "config.yaml"
	DefaultServerHost  = "0.0.0.0"
	DefaultServerPort  = 8080
	DefaultMetricsAddr = ":9090"
	DefaultRedisAddr   = "localhost:6379"
)

// ServerConfig holds the public API server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// RedisConfig holds the Redis connection settings for the work queue and
// processing leases.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig holds the processing queue settings.
type QueueConfig struct {
	Name              string        `yaml:"name"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	LeaseTTL          time.Duration `yaml:"lease_ttl"`
}

// WorkerConfig holds the worker pool settings.
type WorkerConfig struct {
	Count           int           `yaml:"count"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds the structured logging settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
	JSONFormat  bool   `yaml:"json_format"`
}

// ObservabilityConfig holds the metrics sidecar settings.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	LLM           llm.Config          `yaml:"llm"`
	Queue         QueueConfig         `yaml:"queue"`
	Worker        WorkerConfig        `yaml:"worker"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DefaultConfig returns a Config with defaults suitable for local
// development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultServerHost,
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "expopulse",
			User:     "expopulse",
			SSLMode:  "disable",
			MaxConns: 10,
			MinConns: 2,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Queue: QueueConfig{
			Name:              "recordings:process",
			VisibilityTimeout: 5 * time.Minute,
			MaxRetries:        3,
			LeaseTTL:          10 * time.Minute,
		},
		Worker: WorkerConfig{
			Count:           4,
			PollInterval:    time.Second,
			ShutdownTimeout: time.Minute,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "development",
			JSONFormat:  true,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: DefaultMetricsAddr,
		},
	}
}

// Load reads the configuration file at path (if it exists), overlays
// environment variables, and validates the result. An empty path uses
// $EXPOPULSE_CONFIG or config.yaml.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("EXPOPULSE_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays values from a YAML file. Durations are written as
// strings ("30s", "5m") and parsed here.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	type fileConfig struct {
		Server struct {
			Host         string `yaml:"host"`
			Port         int    `yaml:"port"`
			ReadTimeout  string `yaml:"read_timeout"`
			WriteTimeout string `yaml:"write_timeout"`
		} `yaml:"server"`
		Database DatabaseConfig `yaml:"database"`
		Redis    RedisConfig    `yaml:"redis"`
		LLM      struct {
			Model      string `yaml:"model"`
			BaseURL    string `yaml:"base_url"`
			APIKey     string `yaml:"api_key"`
			Timeout    string `yaml:"timeout"`
			MaxRetries int    `yaml:"max_retries"`
		} `yaml:"llm"`
		Queue struct {
			Name              string `yaml:"name"`
			VisibilityTimeout string `yaml:"visibility_timeout"`
			MaxRetries        *int   `yaml:"max_retries"`
			LeaseTTL          string `yaml:"lease_ttl"`
		} `yaml:"queue"`
		Worker struct {
			Count           int    `yaml:"count"`
			PollInterval    string `yaml:"poll_interval"`
			ShutdownTimeout string `yaml:"shutdown_timeout"`
		} `yaml:"worker"`
		Logging       LoggingConfig       `yaml:"logging"`
		Observability ObservabilityConfig `yaml:"observability"`
	}

	var fc fileConfig
	fc.Database = cfg.Database
	fc.Redis = cfg.Redis
	fc.Logging = cfg.Logging
	fc.Observability = cfg.Observability
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.Server.Host != "" {
		cfg.Server.Host = fc.Server.Host
	}
	if fc.Server.Port != 0 {
		cfg.Server.Port = fc.Server.Port
	}
	if err := overlayDuration(&cfg.Server.ReadTimeout, fc.Server.ReadTimeout); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Server.WriteTimeout, fc.Server.WriteTimeout); err != nil {
		return err
	}

	cfg.Database = fc.Database
	cfg.Redis = fc.Redis
	cfg.Logging = fc.Logging
	cfg.Observability = fc.Observability

	if fc.LLM.Model != "" {
		cfg.LLM.Model = fc.LLM.Model
	}
	if fc.LLM.BaseURL != "" {
		cfg.LLM.BaseURL = fc.LLM.BaseURL
	}
	if fc.LLM.APIKey != "" {
		cfg.LLM.APIKey = fc.LLM.APIKey
	}
	if fc.LLM.MaxRetries != 0 {
		cfg.LLM.MaxRetries = fc.LLM.MaxRetries
	}
	if err := overlayDuration(&cfg.LLM.Timeout, fc.LLM.Timeout); err != nil {
		return err
	}

	if fc.Queue.Name != "" {
		cfg.Queue.Name = fc.Queue.Name
	}
	if fc.Queue.MaxRetries != nil {
		cfg.Queue.MaxRetries = *fc.Queue.MaxRetries
	}
	if err := overlayDuration(&cfg.Queue.VisibilityTimeout, fc.Queue.VisibilityTimeout); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Queue.LeaseTTL, fc.Queue.LeaseTTL); err != nil {
		return err
	}

	if fc.Worker.Count != 0 {
		cfg.Worker.Count = fc.Worker.Count
	}
	if err := overlayDuration(&cfg.Worker.PollInterval, fc.Worker.PollInterval); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Worker.ShutdownTimeout, fc.Worker.ShutdownTimeout); err != nil {
		return err
	}

	return nil
}

// overlayDuration parses a duration string onto dst when non-empty.
func overlayDuration(dst *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value, err)
	}
	*dst = parsed
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("EXPOPULSE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("EXPOPULSE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("EXPOPULSE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("EXPOPULSE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("EXPOPULSE_DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("EXPOPULSE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("EXPOPULSE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("EXPOPULSE_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}

	if v := os.Getenv("EXPOPULSE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EXPOPULSE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EXPOPULSE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	if v := os.Getenv("EXPOPULSE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("EXPOPULSE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("EXPOPULSE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("EXPOPULSE_WORKER_COUNT"); v != "" {
		if count, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Count = count
		}
	}

	if v := os.Getenv("EXPOPULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EXPOPULSE_ENVIRONMENT"); v != "" {
		cfg.Logging.Environment = v
	}

	if v := os.Getenv("EXPOPULSE_METRICS_ADDR"); v != "" {
		cfg.Observability.MetricsAddr = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue max_retries must not be negative")
	}
	return c.LLM.Validate()
}
