// Package config loads knolstudy configuration.
//
// Sources are layered, later ones winning:
//
//  1. Built-in defaults
//  2. YAML file (--config)
//  3. Environment variables prefixed KNOLSTUDY_
//  4. Command-line flags that were set explicitly
//
// Environment keys use a double underscore as the section separator:
//
//	KNOLSTUDY_SERVER__ADDR -> server.addr
//	KNOLSTUDY_STUDY__QUEUE__NEW_CARD_CAP -> study.queue.new_card_cap
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/conorfennell/knolstudy/internal/logging"
	"github.com/conorfennell/knolstudy/internal/study"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks the environment variables read into the config.
const EnvPrefix = "KNOLSTUDY_"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      logging.Config `koanf:"log" validate:"-"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	// Timezone is the IANA zone that decides where a study day starts.
	Timezone string       `koanf:"timezone" validate:"required"`
	Study    study.Config `koanf:"study" validate:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// SyncConfig configures deck source synchronization.
type SyncConfig struct {
	// ReposDir is where git deck sources are checked out.
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "localhost:8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log:      logging.DefaultConfig(),
		Database: DatabaseConfig{Path: "knolstudy.db"},
		Sync:     SyncConfig{ReposDir: "repos"},
		Timezone: "UTC",
		Study:    study.DefaultConfig(),
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"addr":       "server.addr",
	"db":         "database.path",
	"repos-dir":  "sync.repos_dir",
	"log-level":  "log.level",
	"log-format": "log.format",
	"timezone":   "timezone",
}

// Load reads the configuration. path may be empty to skip the file; flags
// may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal over the defaults so unset keys keep them.
	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Study.Load.Location = loc
	return &cfg, nil
}

// envKey turns KNOLSTUDY_STUDY__MAX_CONFLICT_RETRIES into
// study.max_conflict_retries.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validate = validator.New()

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if err := c.Study.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
