// Package config loads application configuration from file, environment
// and defaults, with that exact precedence (env beats file beats default).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adlift/adlift/pkg/storage"
)

// ServerConfig tunes the HTTP API server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BatchConfig tunes the batch worker pool and its artifacts.
type BatchConfig struct {
	MaxWorkers   int           `mapstructure:"max_workers"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// StatePath is where queue state is persisted across restarts.
	StatePath string `mapstructure:"state_path"`

	// ReportPath is the storage path for batch reports.
	ReportPath string `mapstructure:"report_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the full application configuration.
type Config struct {
	Storage storage.Config `mapstructure:"storage"`
	Server  ServerConfig   `mapstructure:"server"`
	Batch   BatchConfig    `mapstructure:"batch"`
	Logging LoggingConfig  `mapstructure:"logging"`
}

// Load reads configuration from path (or the default search locations
// when path is empty), applies ADLIFT_* environment overrides and fills
// defaults. A missing or unreadable config file is not fatal: defaults
// apply and the problem is logged.
func Load(path string, log *zap.Logger) (*Config, error) {
	if log == nil {
		log = zap.NewNop()
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ADLIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("adlift")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.adlift")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			log.Debug("no config file found, using defaults")
		} else {
			log.Warn("config file not loaded, using defaults",
				zap.String("path", path), zap.Error(err))
		}
	} else {
		log.Debug("config loaded", zap.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local.base_path", storage.DefaultLocalBasePath)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("batch.max_workers", 4)
	v.SetDefault("batch.poll_interval", 500*time.Millisecond)
	v.SetDefault("batch.state_path", "queue_state.json")
	v.SetDefault("batch.report_path", "reports/batch_report.json")

	v.SetDefault("logging.level", "info")
}
