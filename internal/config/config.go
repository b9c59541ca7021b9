// Package config loads the application configuration from the environment.
//
// Variables use the LEADINTAKE_ prefix and a double underscore for nesting:
//
//	LEADINTAKE_SERVER__PORT=8080          -> server.port
//	LEADINTAKE_MAIL__SMTP__HOST=smtp.host -> mail.smtp.host
//
// A `.env` file in the working directory is loaded automatically. The result
// is validated with go-playground/validator so the process fails fast on
// missing or malformed values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix is stripped from every variable before mapping it to a key.
const EnvPrefix = "LEADINTAKE_"

// Config is the root configuration object. It is built once at process
// start and handed to the components that need it.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth"`
	Mail          MailConfig           `koanf:"mail" validate:"required"`
	Leads         LeadsConfig          `koanf:"leads"`
	Jobs          JobsConfig           `koanf:"jobs"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level runtime information.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups HTTP server settings. Timeouts are in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig is shared by the redis client and the task queue.
type RedisConfig struct {
	Address  string `koanf:"address" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AuthConfig tunes the staff token authentication.
type AuthConfig struct {
	MinPasswordLength int `koanf:"min_password_length" validate:"omitempty,min=1"`
}

// MailConfig selects the mail transport and the well-known addresses.
type MailConfig struct {
	// Provider is "smtp" (gomail) or "resend".
	Provider string `koanf:"provider" validate:"required,oneof=smtp resend"`

	// From is the default sender address.
	From string `koanf:"from" validate:"required,email"`

	// FromName is shown next to From when set.
	FromName string `koanf:"from_name"`

	// StaffAddress receives new-lead alerts and the daily report.
	StaffAddress string `koanf:"staff_address" validate:"required,email"`

	SMTP         SMTPConfig `koanf:"smtp"`
	ResendAPIKey string     `koanf:"resend_api_key" validate:"required_if=Provider resend"`
}

// SMTPConfig holds transport credentials and TLS mode.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// SSL dials with implicit TLS (port 465). When false, STARTTLS is used
	// if the server offers it.
	SSL bool `koanf:"ssl"`

	// InsecureSkipVerify disables certificate verification for relays with
	// self-signed certificates.
	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`
}

// LeadsConfig controls intake limits and resume storage.
type LeadsConfig struct {
	// MaxResumeSize is the upload limit in bytes.
	MaxResumeSize int64 `koanf:"max_resume_size" validate:"omitempty,min=1"`

	// MediaRoot is the directory uploaded files are stored under.
	MediaRoot string `koanf:"media_root"`

	// SubmitRatePerMinute caps public submissions per client IP.
	SubmitRatePerMinute int `koanf:"submit_rate_per_minute" validate:"omitempty,min=1"`
}

// JobsConfig tunes the background worker.
type JobsConfig struct {
	Concurrency     int    `koanf:"concurrency" validate:"omitempty,min=1"`
	DailyReportCron string `koanf:"daily_report_cron"`
	Timezone        string `koanf:"timezone"`
}

const (
	DefaultMinPasswordLength   = 8
	DefaultMaxResumeSize       = 5 << 20
	DefaultMediaRoot           = "media"
	DefaultSubmitRatePerMinute = 10
	DefaultJobConcurrency      = 10
	DefaultDailyReportCron     = "0 7 * * *"
	DefaultTimezone            = "UTC"
)

// applyDefaults fills optional blocks that were not provided.
func (c *Config) applyDefaults() {
	if c.Auth.MinPasswordLength == 0 {
		c.Auth.MinPasswordLength = DefaultMinPasswordLength
	}
	if c.Leads.MaxResumeSize == 0 {
		c.Leads.MaxResumeSize = DefaultMaxResumeSize
	}
	if c.Leads.MediaRoot == "" {
		c.Leads.MediaRoot = DefaultMediaRoot
	}
	if c.Leads.SubmitRatePerMinute == 0 {
		c.Leads.SubmitRatePerMinute = DefaultSubmitRatePerMinute
	}
	if c.Jobs.Concurrency == 0 {
		c.Jobs.Concurrency = DefaultJobConcurrency
	}
	if c.Jobs.DailyReportCron == "" {
		c.Jobs.DailyReportCron = DefaultDailyReportCron
	}
	if c.Jobs.Timezone == "" {
		c.Jobs.Timezone = DefaultTimezone
	}
	if c.Mail.SMTP.Port == 0 {
		c.Mail.SMTP.Port = 587
	}
	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}
}

// Location resolves Jobs.Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Jobs.Timezone)
}

// envKey maps LEADINTAKE_MAIL__SMTP__HOST to mail.smtp.host.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// LoadConfig reads, defaults and validates the configuration.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	mainConfig.applyDefaults()

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if mainConfig.Mail.Provider == "smtp" && mainConfig.Mail.SMTP.Host == "" {
		return nil, fmt.Errorf("config validation failed: mail.smtp.host is required for the smtp provider")
	}

	if _, err := mainConfig.Location(); err != nil {
		return nil, fmt.Errorf("invalid jobs.timezone %q: %w", mainConfig.Jobs.Timezone, err)
	}

	mainConfig.Observability.ServiceName = "lead-intake"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}

// MustLoadConfig is LoadConfig for process entry points: it logs and exits
// on error.
func MustLoadConfig() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("could not load configuration")
	}
	return cfg
}
