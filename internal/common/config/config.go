// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Integrations  IntegrationConfig   `mapstructure:"integrations"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Reminder      ReminderConfig      `mapstructure:"reminder"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// IntegrationConfig holds settings for the external delivery capabilities.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			SendRate  float64 `mapstructure:"send_rate"` // messages per second
			SendBurst int     `mapstructure:"send_burst"`
		} `mapstructure:"ses"`
		SNS struct {
			SenderID string `mapstructure:"sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		UseTLS   bool   `mapstructure:"use_tls"`
	} `mapstructure:"smtp"`
}

// Email providers accepted by notifications.email.provider.
const (
	EmailProviderSES  = "ses"
	EmailProviderSMTP = "smtp"
)

// NotificationConfig holds per-channel delivery settings.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		Provider  string `mapstructure:"provider"`
		FromEmail string `mapstructure:"from_email"`
		FromName  string `mapstructure:"from_name"`
	} `mapstructure:"email"`
	InApp struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"in_app"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	PreferenceCacheTTL int    `mapstructure:"preference_cache_ttl"` // seconds
	DeliveryTimeout    int    `mapstructure:"delivery_timeout"`     // milliseconds
	AppURL             string `mapstructure:"app_url"`
}

// ReminderConfig controls the daily reminder scan trigger.
type ReminderConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron expression
	Timezone string `mapstructure:"timezone"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// CacheTTL returns the preference cache TTL as a duration.
func (n NotificationConfig) CacheTTL() time.Duration {
	return time.Duration(n.PreferenceCacheTTL) * time.Second
}
