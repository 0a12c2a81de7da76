// Package config loads gym-manager settings from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix marks environment variables read as configuration.
const EnvPrefix = "GYM_"

const maxConfigFileSize = 1024 * 1024

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
	Billing BillingConfig `koanf:"billing"`
	Admin   AdminConfig   `koanf:"admin"`
	Google  GoogleConfig  `koanf:"google"`
	Jobs    JobsConfig    `koanf:"jobs"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	SecureCookie    bool          `koanf:"secure_cookie"`
	BaseURL         string        `koanf:"base_url"`
	SessionSecret   string        `koanf:"session_secret"`
	CSRFKey         string        `koanf:"csrf_key"`
	LoginRate       float64       `koanf:"login_rate"`
	LoginBurst      int           `koanf:"login_burst"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StorageConfig holds database and file locations.
type StorageConfig struct {
	DBPath      string `koanf:"db_path"`
	GymBackend  string `koanf:"gym_backend"`
	GymDataDir  string `koanf:"gym_data_dir"`
	UploadDir   string `koanf:"upload_dir"`
	MaxUploadMB int    `koanf:"max_upload_mb"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// BillingConfig holds subscription prices and the Stripe account.
type BillingConfig struct {
	StripeSecretKey string  `koanf:"stripe_secret_key"`
	StripePublicKey string  `koanf:"stripe_public_key"`
	Currency        string  `koanf:"currency"`
	ProductName     string  `koanf:"product_name"`
	CardAmount      float64 `koanf:"card_amount"`
	CardMethod      string  `koanf:"card_method"`
	ManualAmount    float64 `koanf:"manual_amount"`
	ManualMethod    string  `koanf:"manual_method"`
	RenewalDays     int     `koanf:"renewal_days"`
}

// AdminConfig seeds administrator accounts.
type AdminConfig struct {
	Emails            []string `koanf:"emails"`
	BootstrapUser     string   `koanf:"bootstrap_user"`
	BootstrapPassword string   `koanf:"bootstrap_password"`
}

// GoogleConfig enables Google sign-in.
type GoogleConfig struct {
	ClientID string `koanf:"client_id"`
}

// JobsConfig controls background jobs.
type JobsConfig struct {
	Enabled        bool   `koanf:"enabled"`
	SessionCleanup string `koanf:"session_cleanup"`
	ExpiryReport   string `koanf:"expiry_report"`
	ExpiryDays     int    `koanf:"expiry_days"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			LoginRate:       5,
			LoginBurst:      5,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			DBPath:      "gym.db",
			GymBackend:  "file",
			GymDataDir:  "gym_data",
			UploadDir:   "uploads",
			MaxUploadMB: 16,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Billing: BillingConfig{
			Currency:     "usd",
			ProductName:  "Gym Manager Pro Subscription",
			CardAmount:   60.00,
			CardMethod:   "Credit Card",
			ManualAmount: 2000.00,
			ManualMethod: "Manual/JazzCash",
			RenewalDays:  30,
		},
		Jobs: JobsConfig{
			Enabled:        true,
			SessionCleanup: "@hourly",
			ExpiryReport:   "0 9 * * *",
			ExpiryDays:     3,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads configuration with this precedence, highest first:
//  1. GYM_ environment variables (GYM_SERVER_PORT -> server.port)
//  2. legacy variables PORT, DB_PATH, ADMIN_USER, ADMIN_PASSWORD
//  3. the YAML file at path, if path is not empty
//  4. built-in defaults
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyLegacyEnv(cfg, k)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// transformEnv maps GYM_SECTION_FIELD_NAME to section.field_name. The
// admin email list is comma separated.
func transformEnv(key, value string) (string, any) {
	lower := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower, value
	}
	name := parts[0] + "." + parts[1]
	if name == "admin.emails" {
		return name, splitList(value)
	}
	return name, value
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func applyLegacyEnv(cfg *Config, k *koanf.Koanf) {
	if v := os.Getenv("PORT"); v != "" && !k.Exists("server.port") {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" && !k.Exists("storage.db_path") {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("ADMIN_USER"); v != "" && !k.Exists("admin.bootstrap_user") {
		cfg.Admin.BootstrapUser = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" && !k.Exists("admin.bootstrap_password") {
		cfg.Admin.BootstrapPassword = v
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.GymBackend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.gym_backend must be file or sqlite, got %q", c.Storage.GymBackend))
	}
	if c.Storage.DBPath == "" {
		errs = append(errs, errors.New("storage.db_path is required"))
	}
	if c.Storage.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("storage.max_upload_mb must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Server.LoginRate <= 0 || c.Server.LoginBurst <= 0 {
		errs = append(errs, errors.New("server.login_rate and server.login_burst must be positive"))
	}
	if c.Billing.CardAmount < 0 || c.Billing.ManualAmount < 0 {
		errs = append(errs, errors.New("billing amounts cannot be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) << 20
}
