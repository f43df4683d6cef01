package domain

import (
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Review   ReviewConfig   `mapstructure:"review"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	RateLimitPerSec  float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
	VerdictCacheSize int           `mapstructure:"verdict_cache_size"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	ArchiveEnabled   bool          `mapstructure:"archive_enabled"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	CertFile         string        `mapstructure:"cert_file"`
	KeyFile          string        `mapstructure:"key_file"`
}

// DatabaseConfig represents the archive database connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ReviewConfig selects the clinician review store backend.
type ReviewConfig struct {
	Backend     string `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	DatabaseURL string `mapstructure:"database_url"`
}

// PolicyConfig carries the LCD policy constants the engine evaluates
// against. Thresholds are percentages; days are calendar days.
type PolicyConfig struct {
	PolicyID                  string  `mapstructure:"policy_id"`
	Jurisdiction              string  `mapstructure:"jurisdiction"`
	EffectiveDate             string  `mapstructure:"effective_date"` // YYYY-MM-DD
	MinConservativeCareDays   int     `mapstructure:"min_conservative_care_days"`
	PreCTPReductionThreshold  float64 `mapstructure:"pre_ctp_reduction_threshold"`
	PostCTPReductionThreshold float64 `mapstructure:"post_ctp_reduction_threshold"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ConfigManager defines the interface for configuration management.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetPolicyConfig() *PolicyConfig
	PolicyMetadata() PolicyMetadata
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
