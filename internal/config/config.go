// Package config loads the scheduler's configuration from a TOML file with
// environment-variable overrides, the way the teacher's internal/config
// does, generalized to this service's own settings (solver limits, the
// SQLite path, the HTTP listen address) instead of parent names and OAuth.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dutyroster/scheduler/internal/optimizer"
)

// Config holds the application configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Solver   SolverConfig   `koanf:"solver"`
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig holds the SQLite connection settings.
type DatabaseConfig struct {
	Path string `koanf:"path" env:"SCHED_DB_PATH"`
}

// SolverConfig holds the optimizer's tunable limits (§9 Open Questions).
// DeltaScaledCap switches the per-person cap from the constant
// MaxPerPerson to the historical delta-scaled variant derived from each
// person's average positive stats delta; it defaults to off.
type SolverConfig struct {
	MaxPerPerson   int           `koanf:"max_per_person" env:"SCHED_MAX_PER_PERSON"`
	DeltaScaledCap bool          `koanf:"delta_scaled_cap" env:"SCHED_DELTA_SCALED_CAP"`
	Timeout        time.Duration `koanf:"timeout" env:"SCHED_SOLVER_TIMEOUT"`
}

// HTTPConfig holds the logical HTTP surface's listen address.
type HTTPConfig struct {
	ListenAddr string `koanf:"listen_addr" env:"SCHED_HTTP_LISTEN_ADDR"`
}

// LogConfig holds the logger's verbosity and output mode.
type LogConfig struct {
	Level       string `koanf:"level" env:"SCHED_LOG_LEVEL"`
	Development bool   `koanf:"development" env:"SCHED_LOG_DEV"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"database.path":           "data/scheduler.db",
		"solver.max_per_person":   optimizer.DefaultMaxPerPerson,
		"solver.delta_scaled_cap": false,
		"solver.timeout":          "30s",
		"http.listen_addr":        ":8080",
		"log.level":               "info",
		"log.development":         false,
	}
}

// Load reads path (a TOML file) layered over built-in defaults, then
// applies environment-variable overrides, mirroring the teacher's
// defaults-then-file-then-env layering in internal/config.Load but driven
// by koanf instead of BurntSushi/toml plus a single PORT special-case.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate collects every configuration problem at once via
// hashicorp/go-multierror, rather than stopping at the first, so a
// misconfigured deployment only needs to fix its config file once.
func validate(cfg *Config) error {
	var result *multierror.Error
	if cfg.Database.Path == "" {
		result = multierror.Append(result, fmt.Errorf("database.path is required"))
	}
	if cfg.Solver.MaxPerPerson < 1 {
		result = multierror.Append(result, fmt.Errorf("solver.max_per_person must be positive, got %d", cfg.Solver.MaxPerPerson))
	}
	if cfg.Solver.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("solver.timeout must be positive, got %s", cfg.Solver.Timeout))
	}
	if cfg.HTTP.ListenAddr == "" {
		result = multierror.Append(result, fmt.Errorf("http.listen_addr is required"))
	}
	return result.ErrorOrNil()
}
