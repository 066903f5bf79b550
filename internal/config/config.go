// Package config loads optional ambient daemon defaults from a YAML
// file, leaving every field at its built-in default when the file is
// absent or a field is omitted.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fcoury/termwright/internal/logx"
	"github.com/fcoury/termwright/internal/wait"
)

const (
	DefaultCols = 80
	DefaultRows = 24
)

// Config holds daemon defaults overridable by an optional YAML file
// and, above that, by explicit CLI flags.
type Config struct {
	Cols             int      `yaml:"cols"`
	Rows             int      `yaml:"rows"`
	PollIntervalMs   int      `yaml:"poll_interval_ms"`
	DefaultTimeoutMs int      `yaml:"default_timeout_ms"`
	SocketDir        string   `yaml:"socket_dir"`
	LogLevel         logx.Level `yaml:"log_level"`
}

// Default returns the built-in defaults, matching the wait engine's
// own poll interval and timeout constants.
func Default() Config {
	return Config{
		Cols:             DefaultCols,
		Rows:             DefaultRows,
		PollIntervalMs:   int(wait.DefaultPollInterval / time.Millisecond),
		DefaultTimeoutMs: int(wait.DefaultTimeout / time.Millisecond),
		SocketDir:        "",
		LogLevel:         logx.LevelInfo,
	}
}

// Load reads path (if non-empty) or the XDG default location, merging
// present fields over Default(). A missing file at the XDG default
// location is not an error; a missing file at an explicitly requested
// path is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = defaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return cfg, err
		}
		return cfg, err
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, err
	}
	merge(&cfg, file)
	return cfg, nil
}

func merge(into *Config, from Config) {
	if from.Cols != 0 {
		into.Cols = from.Cols
	}
	if from.Rows != 0 {
		into.Rows = from.Rows
	}
	if from.PollIntervalMs != 0 {
		into.PollIntervalMs = from.PollIntervalMs
	}
	if from.DefaultTimeoutMs != 0 {
		into.DefaultTimeoutMs = from.DefaultTimeoutMs
	}
	if from.SocketDir != "" {
		into.SocketDir = from.SocketDir
	}
	if from.LogLevel != "" {
		into.LogLevel = from.LogLevel
	}
}

func defaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "termwright", "config.yaml")
}

// PollInterval returns PollIntervalMs as a time.Duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DefaultTimeout returns DefaultTimeoutMs as a time.Duration.
func (c Config) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}
