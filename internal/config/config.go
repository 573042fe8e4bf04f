package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the full process configuration, loaded from ARENDABOT_-prefixed
// environment variables. A double underscore separates nesting levels, so
// ARENDABOT_LOG__FLUSH_INTERVAL sets log.flush_interval.
type Config struct {
	Primary   Primary         `koanf:"primary" validate:"required"`
	Server    ServerConfig    `koanf:"server" validate:"required"`
	Log       LogConfig       `koanf:"log" validate:"required"`
	Database  DatabaseConfig  `koanf:"database" validate:"required"`
	Scheduler SchedulerConfig `koanf:"scheduler" validate:"required"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=dev test prod"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"min=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"min=0"`
}

type LogConfig struct {
	Path          string        `koanf:"path" validate:"required"`
	Level         string        `koanf:"level" validate:"required,oneof=debug info warn error"`
	FlushInterval time.Duration `koanf:"flush_interval" validate:"min=0"`
	MaxSize       int64         `koanf:"max_size" validate:"min=1"`
	MaxBackups    int           `koanf:"max_backups" validate:"min=0"`
	Compress      bool          `koanf:"compress"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type SchedulerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Interval     time.Duration `koanf:"interval" validate:"min=1s"`
	InitialDelay time.Duration `koanf:"initial_delay" validate:"min=0"`
}

// Address returns the listen address for the HTTP server.
func (s ServerConfig) Address() string {
	if strings.HasPrefix(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

func defaults() *Config {
	return &Config{
		Primary: Primary{Env: "dev"},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Log: LogConfig{
			Path:       "logs/bot.log",
			Level:      "info",
			MaxSize:    10 << 20,
			MaxBackups: 7,
			Compress:   true,
		},
		Database: DatabaseConfig{Path: "data/bot.db"},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			Interval:     5 * time.Minute,
			InitialDelay: 10 * time.Second,
		},
	}
}

// LoadConfig merges environment variables over the built-in defaults and
// validates the result. A .env file in the working directory is read first;
// variables already set in the environment win over file values.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	err := k.Load(env.Provider("ARENDABOT_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "ARENDABOT_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}
