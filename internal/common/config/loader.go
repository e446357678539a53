// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	activeMu sync.Mutex
	active   *viper.Viper
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay is optional.
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	setActive(v)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	setActive(v)
	return cfg, nil
}

// Watch re-decodes the last loaded config file whenever it changes on disk.
// It reports false when no file backs the active configuration.
func Watch(onChange func(cfg *Config, err error)) bool {
	activeMu.Lock()
	v := active
	activeMu.Unlock()
	if v == nil || v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()
	return true
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	// POSTGRES host becomes DATABASE_POSTGRES_HOST and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setActive(v *viper.Viper) {
	activeMu.Lock()
	active = v
	activeMu.Unlock()
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working
// directory, so tests in nested packages pick up the same file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from their conventional env names when the
// file left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Database.Redis.Password == "" {
		cfg.Database.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.Integrations.SMTP.Password == "" {
		cfg.Integrations.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	}
	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = os.Getenv("AWS_REGION")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "coaching-notifier"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// SES sandbox accounts start at 1 msg/s, production at 14.
	if cfg.Integrations.AWS.SES.SendRate == 0 {
		cfg.Integrations.AWS.SES.SendRate = 1
	}
	if cfg.Integrations.AWS.SES.SendBurst == 0 {
		cfg.Integrations.AWS.SES.SendBurst = 1
	}
	if cfg.Integrations.SMTP.Port == 0 {
		cfg.Integrations.SMTP.Port = 587
	}

	if cfg.Notifications.Email.Provider == "" {
		cfg.Notifications.Email.Provider = EmailProviderSES
	}
	if cfg.Notifications.PreferenceCacheTTL == 0 {
		cfg.Notifications.PreferenceCacheTTL = 300
	}
	if cfg.Notifications.DeliveryTimeout == 0 {
		cfg.Notifications.DeliveryTimeout = 10000
	}

	if cfg.Reminder.Schedule == "" {
		cfg.Reminder.Schedule = "0 8 * * *"
	}
	if cfg.Reminder.Timezone == "" {
		cfg.Reminder.Timezone = "UTC"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Notifications.Email.Enabled {
		if cfg.Notifications.Email.FromEmail == "" {
			return fmt.Errorf("notifications.email.from_email is required when email is enabled")
		}
		switch cfg.Notifications.Email.Provider {
		case EmailProviderSES:
			if cfg.Integrations.AWS.Region == "" {
				return fmt.Errorf("integrations.aws.region is required for the ses provider")
			}
		case EmailProviderSMTP:
			if cfg.Integrations.SMTP.Host == "" {
				return fmt.Errorf("integrations.smtp.host is required for the smtp provider")
			}
		default:
			return fmt.Errorf("notifications.email.provider %q is not supported", cfg.Notifications.Email.Provider)
		}
	}

	if cfg.Notifications.SMS.Enabled && cfg.Integrations.AWS.Region == "" {
		return fmt.Errorf("integrations.aws.region is required when sms is enabled")
	}

	if _, err := time.LoadLocation(cfg.Reminder.Timezone); err != nil {
		return fmt.Errorf("reminder.timezone: %w", err)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
