// Package config loads process configuration from the environment and the
// runtime settings file that can be edited while the daemon runs.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/emiliopalmerini/mtrack/internal/adapters/otel"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "MTRACK"

// Env is the process configuration. It is read once at startup.
type Env struct {
	DataDir    string `envconfig:"DATA_DIR"`
	DBPath     string `envconfig:"DB_PATH"`
	ConfigPath string `envconfig:"CONFIG_PATH"`
	TZ         string `envconfig:"TZ"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	GenerateTimeout time.Duration `envconfig:"GENERATE_TIMEOUT" default:"30s"`
	ConfigPoll      time.Duration `envconfig:"CONFIG_POLL" default:"15s"`
	PruneInterval   time.Duration `envconfig:"PRUNE_INTERVAL" default:"1h"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	OTEL otel.Config `envconfig:"OTEL"`
}

// LoadEnv reads MTRACK_* variables and fills path defaults under the XDG data directory.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if env.DataDir == "" {
		dir, err := util.GetXDGDataDir()
		if err != nil {
			return nil, err
		}
		env.DataDir = dir
	}
	if env.DBPath == "" {
		env.DBPath = filepath.Join(env.DataDir, "activity.db")
	}
	if env.ConfigPath == "" {
		env.ConfigPath = filepath.Join(env.DataDir, "config.json")
	}
	if env.GenerateTimeout <= 0 || env.ConfigPoll <= 0 || env.PruneInterval <= 0 {
		return nil, fmt.Errorf("durations must be positive")
	}

	if _, err := env.Location(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Location returns the time zone used to bucket records into local dates.
func (e *Env) Location() (*time.Location, error) {
	if e.TZ == "" || strings.EqualFold(e.TZ, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid %s_TZ %q: %w", EnvPrefix, e.TZ, err)
	}
	return loc, nil
}

// DefaultReportDir is where reports go unless report_dir is set.
func (e *Env) DefaultReportDir() string {
	return filepath.Join(e.DataDir, "reports")
}

// NewLogger builds the daemon logger from LOG_LEVEL and LOG_FORMAT.
func (e *Env) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(e.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
