// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Asaas    AsaasConfig    `yaml:"asaas"`
	Omie     OmieConfig     `yaml:"omie"`
	Partner  PartnerConfig  `yaml:"partner"`
	CRM      CRMConfig      `yaml:"crm"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	OpenAPI  OpenAPIConfig  `yaml:"openapi"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// AsaasConfig configures the payment provider integration.
type AsaasConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url,omitempty"`
	WebhookToken string `yaml:"webhook_token"`
	BillingType  string `yaml:"billing_type"` // "BOLETO", "PIX", "CREDIT_CARD"
}

// OmieConfig configures the ERP integration.
type OmieConfig struct {
	AppKey    string `yaml:"app_key"`
	AppSecret string `yaml:"app_secret"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// PartnerConfig configures the guarded partner API proxy.
type PartnerConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url,omitempty"`
	Cache         string        `yaml:"cache"` // "memory" or "redis"
	TTL           time.Duration `yaml:"ttl"`
	BudgetLimit   int           `yaml:"budget_limit"` // calls per window, 0 disables
	BudgetWindow  time.Duration `yaml:"budget_window"`
	RPS           float64       `yaml:"rps"` // upstream smoothing, 0 disables
	Burst         int           `yaml:"burst"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CRMConfig configures signed webhook notifications to the CRM.
type CRMConfig struct {
	WebhookURL    string        `yaml:"webhook_url"` // empty disables notifications
	Secret        string        `yaml:"secret"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// RedisConfig configures the Redis connection for the partner cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// SessionConfig configures login sessions.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	LEDGERDESK_SERVER_HOST         - Server host (default: 0.0.0.0)
//	LEDGERDESK_SERVER_PORT         - Server port (default: 8080)
//	LEDGERDESK_DATABASE_DRIVER     - Database driver: sqlite or memory (default: sqlite)
//	LEDGERDESK_DATABASE_DSN        - Database path (default: ledgerdesk.db)
//	LEDGERDESK_ASAAS_API_KEY       - Asaas API key
//	LEDGERDESK_ASAAS_WEBHOOK_TOKEN - Expected asaas-access-token header (required)
//	LEDGERDESK_OMIE_APP_KEY        - Omie app key
//	LEDGERDESK_OMIE_APP_SECRET     - Omie app secret
//	LEDGERDESK_PARTNER_API_KEY     - BomControle API key
//	LEDGERDESK_PARTNER_CACHE       - Partner cache backend: memory or redis
//	LEDGERDESK_CRM_WEBHOOK_URL     - Clint webhook URL (empty disables)
//	LEDGERDESK_CRM_SECRET          - HMAC secret for CRM payload signing
//	LEDGERDESK_REDIS_ADDR          - Redis address for the partner cache
//	LEDGERDESK_LOG_LEVEL           - Log level (default: info)
//	LEDGERDESK_LOG_FORMAT          - Log format: json or console (default: json)
//	LEDGERDESK_METRICS_ENABLED     - Enable /metrics endpoint (default: true)
//	LEDGERDESK_OPENAPI_ENABLED     - Enable OpenAPI/Swagger (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set LEDGERDESK_ASAAS_WEBHOOK_TOKEN")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("LEDGERDESK_ASAAS_WEBHOOK_TOKEN") != ""
}

// applyEnvOverrides applies LEDGERDESK_* environment variables.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("LEDGERDESK_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LEDGERDESK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LEDGERDESK_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("LEDGERDESK_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database
	if v := os.Getenv("LEDGERDESK_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("LEDGERDESK_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Asaas
	if v := os.Getenv("LEDGERDESK_ASAAS_API_KEY"); v != "" {
		cfg.Asaas.APIKey = v
	}
	if v := os.Getenv("LEDGERDESK_ASAAS_BASE_URL"); v != "" {
		cfg.Asaas.BaseURL = v
	}
	if v := os.Getenv("LEDGERDESK_ASAAS_WEBHOOK_TOKEN"); v != "" {
		cfg.Asaas.WebhookToken = v
	}
	if v := os.Getenv("LEDGERDESK_ASAAS_BILLING_TYPE"); v != "" {
		cfg.Asaas.BillingType = v
	}

	// Omie
	if v := os.Getenv("LEDGERDESK_OMIE_APP_KEY"); v != "" {
		cfg.Omie.AppKey = v
	}
	if v := os.Getenv("LEDGERDESK_OMIE_APP_SECRET"); v != "" {
		cfg.Omie.AppSecret = v
	}
	if v := os.Getenv("LEDGERDESK_OMIE_BASE_URL"); v != "" {
		cfg.Omie.BaseURL = v
	}

	// Partner
	if v := os.Getenv("LEDGERDESK_PARTNER_API_KEY"); v != "" {
		cfg.Partner.APIKey = v
	}
	if v := os.Getenv("LEDGERDESK_PARTNER_BASE_URL"); v != "" {
		cfg.Partner.BaseURL = v
	}
	if v := os.Getenv("LEDGERDESK_PARTNER_CACHE"); v != "" {
		cfg.Partner.Cache = v
	}
	if v := os.Getenv("LEDGERDESK_PARTNER_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Partner.TTL = d
		}
	}
	if v := os.Getenv("LEDGERDESK_PARTNER_BUDGET_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Partner.BudgetLimit = n
		}
	}
	if v := os.Getenv("LEDGERDESK_PARTNER_BUDGET_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Partner.BudgetWindow = d
		}
	}
	if v := os.Getenv("LEDGERDESK_PARTNER_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Partner.RPS = f
		}
	}

	// CRM
	if v := os.Getenv("LEDGERDESK_CRM_WEBHOOK_URL"); v != "" {
		cfg.CRM.WebhookURL = v
	}
	if v := os.Getenv("LEDGERDESK_CRM_SECRET"); v != "" {
		cfg.CRM.Secret = v
	}
	if v := os.Getenv("LEDGERDESK_CRM_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CRM.MaxAttempts = n
		}
	}

	// Redis
	if v := os.Getenv("LEDGERDESK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LEDGERDESK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LEDGERDESK_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	// Session
	if v := os.Getenv("LEDGERDESK_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = d
		}
	}

	// Logging
	if v := os.Getenv("LEDGERDESK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LEDGERDESK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics
	if v := os.Getenv("LEDGERDESK_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("LEDGERDESK_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI
	if v := os.Getenv("LEDGERDESK_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "ledgerdesk.db"
	}

	if cfg.Asaas.BillingType == "" {
		cfg.Asaas.BillingType = "BOLETO"
	}

	if cfg.Partner.Cache == "" {
		cfg.Partner.Cache = "memory"
	}
	if cfg.Partner.TTL == 0 {
		cfg.Partner.TTL = 15 * time.Minute
	}
	if cfg.Partner.BudgetLimit == 0 {
		cfg.Partner.BudgetLimit = 30
	}
	if cfg.Partner.BudgetWindow == 0 {
		cfg.Partner.BudgetWindow = time.Minute
	}
	if cfg.Partner.Burst == 0 {
		cfg.Partner.Burst = 5
	}
	if cfg.Partner.SweepInterval == 0 {
		cfg.Partner.SweepInterval = 5 * time.Minute
	}

	if cfg.CRM.Timeout == 0 {
		cfg.CRM.Timeout = 15 * time.Second
	}
	if cfg.CRM.MaxAttempts == 0 {
		cfg.CRM.MaxAttempts = 3
	}
	if cfg.CRM.RetryInterval == 0 {
		cfg.CRM.RetryInterval = time.Minute
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Asaas.WebhookToken == "" {
		return fmt.Errorf("asaas.webhook_token is required")
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validCaches := map[string]bool{"memory": true, "redis": true}
	if !validCaches[cfg.Partner.Cache] {
		return fmt.Errorf("partner.cache must be 'memory' or 'redis', got %q", cfg.Partner.Cache)
	}
	if cfg.Partner.Cache == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when partner.cache is 'redis'")
	}
	if cfg.Partner.BudgetLimit < 0 {
		return fmt.Errorf("partner.budget_limit must not be negative")
	}

	if cfg.CRM.WebhookURL != "" && cfg.CRM.Secret == "" {
		return fmt.Errorf("crm.secret is required when crm.webhook_url is set")
	}
	if cfg.CRM.MaxAttempts < 1 {
		return fmt.Errorf("crm.max_attempts must be at least 1")
	}

	return nil
}
