package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ctp-eligibility-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("CTP_ELIG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.tls_enabled", false)
	viper.SetDefault("server.rate_limit_per_sec", 25)
	viper.SetDefault("server.rate_limit_burst", 50)
	viper.SetDefault("server.verdict_cache_size", 512)
	viper.SetDefault("server.metrics_enabled", true)
	viper.SetDefault("server.archive_enabled", false)

	// Database defaults (verdict archive, only used when archiving is on)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "ctp_eligibility")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Clinician review store defaults
	viper.SetDefault("review.backend", "sqlite")
	viper.SetDefault("review.sqlite_path", "data/reviews.db")
	viper.SetDefault("review.database_url", "")

	// LCD policy defaults
	viper.SetDefault("policy.policy_id", "L35041")
	viper.SetDefault("policy.jurisdiction", "MAC Jurisdiction N")
	viper.SetDefault("policy.effective_date", "2023-01-01")
	viper.SetDefault("policy.min_conservative_care_days", 28)
	viper.SetDefault("policy.pre_ctp_reduction_threshold", 50.0)
	viper.SetDefault("policy.post_ctp_reduction_threshold", 20.0)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetPolicyConfig returns the active LCD policy configuration
func (m *Manager) GetPolicyConfig() *domain.PolicyConfig {
	return &m.config.Policy
}

// PolicyMetadata returns the policy identity attached to every verdict
func (m *Manager) PolicyMetadata() domain.PolicyMetadata {
	meta := domain.PolicyMetadata{
		PolicyID:     m.config.Policy.PolicyID,
		Jurisdiction: m.config.Policy.Jurisdiction,
	}
	if d, err := time.Parse("2006-01-02", m.config.Policy.EffectiveDate); err == nil {
		meta.EffectiveDate = d.UTC()
	}
	return meta
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimitPerSec <= 0 {
		return fmt.Errorf("invalid rate limit: %.1f requests/sec", config.Server.RateLimitPerSec)
	}
	if config.Server.VerdictCacheSize <= 0 {
		return fmt.Errorf("invalid verdict cache size: %d", config.Server.VerdictCacheSize)
	}

	// Validate policy configuration
	if config.Policy.PolicyID == "" {
		return fmt.Errorf("policy ID is required")
	}
	if config.Policy.MinConservativeCareDays <= 0 {
		return fmt.Errorf("invalid minimum conservative care days: %d", config.Policy.MinConservativeCareDays)
	}
	if config.Policy.PreCTPReductionThreshold <= 0 || config.Policy.PreCTPReductionThreshold > 100 {
		return fmt.Errorf("invalid pre-CTP reduction threshold: %.1f", config.Policy.PreCTPReductionThreshold)
	}
	if config.Policy.PostCTPReductionThreshold <= 0 || config.Policy.PostCTPReductionThreshold > 100 {
		return fmt.Errorf("invalid post-CTP reduction threshold: %.1f", config.Policy.PostCTPReductionThreshold)
	}
	if _, err := time.Parse("2006-01-02", config.Policy.EffectiveDate); err != nil {
		return fmt.Errorf("invalid policy effective date: %q", config.Policy.EffectiveDate)
	}

	// Validate review store configuration
	switch config.Review.Backend {
	case "sqlite":
		if config.Review.SQLitePath == "" {
			return fmt.Errorf("review sqlite path is required")
		}
	case "postgres":
		if config.Review.DatabaseURL == "" {
			return fmt.Errorf("review database URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid review backend: %q (must be sqlite or postgres)", config.Review.Backend)
	}

	// Validate database configuration when the verdict archive is enabled
	if config.Server.ArchiveEnabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required when archiving is enabled")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required when archiving is enabled")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required when archiving is enabled")
		}
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
