// Package config loads client settings from defaults, an optional YAML file,
// AGROMARKET_* environment variables and command line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/agromarket/internal/client/connectivity"
	"github.com/iudanet/agromarket/internal/client/scheduler"
	clientsync "github.com/iudanet/agromarket/internal/client/sync"
	"github.com/iudanet/agromarket/internal/logger"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "AGROMARKET"

// Storage drivers
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Keys of the configuration tree, shared with flag bindings
const (
	KeyServerURL         = "server_url"
	KeyToken             = "token"
	KeyClientVersion     = "client_version"
	KeyPullLimit         = "pull_limit"
	KeyStorageDriver     = "storage.driver"
	KeyStoragePath       = "storage.path"
	KeySchedulerBase     = "scheduler.base_interval"
	KeySchedulerMax      = "scheduler.max_interval"
	KeyProbeInterval     = "probe.interval"
	KeyRequestTimeout    = "request_timeout"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyLogFile           = "log.file"
	defaultServerURL     = "http://localhost:8080"
	defaultStoragePath   = "agromarket-client.db"
	defaultClientVersion = "dev"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// Config holds client settings
type Config struct {
	Log            LogConfig       `mapstructure:"log"`
	ServerURL      string          `mapstructure:"server_url"`
	Token          string          `mapstructure:"token"`
	ClientVersion  string          `mapstructure:"client_version"`
	Storage        StorageConfig   `mapstructure:"storage"`
	Scheduler      SchedulerConfig `mapstructure:"scheduler"`
	Probe          ProbeConfig     `mapstructure:"probe"`
	PullLimit      int             `mapstructure:"pull_limit"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
}

// StorageConfig selects the local durable store
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // bolt или sqlite
	Path   string `mapstructure:"path"`
}

// SchedulerConfig задает интервалы фоновой отправки
type SchedulerConfig struct {
	BaseInterval time.Duration `mapstructure:"base_interval"`
	MaxInterval  time.Duration `mapstructure:"max_interval"`
}

// ProbeConfig задает интервал проверки доступности сервера
type ProbeConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // auto, text или json
	File   string `mapstructure:"file"`
}

// SetDefaults registers default values; every key must be known to viper
// so that AutomaticEnv can override it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerURL, defaultServerURL)
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyClientVersion, defaultClientVersion)
	v.SetDefault(KeyPullLimit, clientsync.DefaultPullLimit)
	v.SetDefault(KeyStorageDriver, DriverBolt)
	v.SetDefault(KeyStoragePath, defaultStoragePath)
	v.SetDefault(KeySchedulerBase, scheduler.DefaultBaseInterval)
	v.SetDefault(KeySchedulerMax, scheduler.DefaultMaxInterval)
	v.SetDefault(KeyProbeInterval, connectivity.DefaultInterval)
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeyLogFile, "")
}

// Load reads configuration into a Config.
// configFile may be empty; a non-empty path must exist.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail late at runtime
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server_url must be an http(s) URL, got %q", c.ServerURL))
	}

	switch c.Storage.Driver {
	case DriverBolt, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverBolt, DriverSQLite, c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path cannot be empty"))
	}

	if c.Scheduler.BaseInterval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.base_interval must be positive, got %s", c.Scheduler.BaseInterval))
	}
	if c.Scheduler.MaxInterval < c.Scheduler.BaseInterval {
		errs = append(errs, fmt.Errorf("scheduler.max_interval %s is less than base_interval %s",
			c.Scheduler.MaxInterval, c.Scheduler.BaseInterval))
	}
	if c.Probe.Interval <= 0 {
		errs = append(errs, fmt.Errorf("probe.interval must be positive, got %s", c.Probe.Interval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.PullLimit <= 0 {
		errs = append(errs, fmt.Errorf("pull_limit must be positive, got %d", c.PullLimit))
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be auto, text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LoggerOptions converts log settings for logger.New
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{Level: c.Log.Level, Format: c.Log.Format, File: c.Log.File}
}
