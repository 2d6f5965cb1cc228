// Package config resolves quail settings from defaults, an optional YAML
// file and QUAIL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage backends for user records.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config holds all settings.
type Config struct {
	// DataDir holds user records, the badger database and, by default,
	// the SQLite database.
	DataDir string `yaml:"data_dir" validate:"required"`
	DBPath  string `yaml:"db_path" validate:"required"`
	Backend string `yaml:"backend" validate:"oneof=file badger"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Block defaults, overridable per command.
	Timed           bool `yaml:"timed"`
	TimePerQuestion int  `yaml:"time_per_question" validate:"min=1,max=3600"`
	ShowAnswers     bool `yaml:"show_answers"`
}

var validate = validator.New()

// Default returns the built-in settings rooted at dataDir.
func Default(dataDir string) Config {
	return Config{
		DataDir:         dataDir,
		Backend:         BackendFile,
		LogLevel:        "warn",
		TimePerQuestion: 90,
	}
}

// DataHome returns $XDG_DATA_HOME/quail, or ~/.local/share/quail.
func DataHome() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "quail"), nil
}

// DefaultPath returns the config file location:
// QUAIL_CONFIG, $XDG_CONFIG_HOME/quail/config.yaml or
// ~/.config/quail/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv("QUAIL_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "quail", "config.yaml"), nil
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is ignored), then environment variables. An empty db_path
// resolves to quail.db inside the data directory.
func Load(path string) (Config, error) {
	home, err := DataHome()
	if err != nil {
		return Config{}, err
	}
	cfg := Default(home)

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "quail.db")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	return validate.Struct(c)
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) error {
	if v := os.Getenv("QUAIL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QUAIL_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("QUAIL_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("QUAIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("QUAIL_TIME_PER_QUESTION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUAIL_TIME_PER_QUESTION: %w", err)
		}
		cfg.TimePerQuestion = n
	}
	for name, dst := range map[string]*bool{
		"QUAIL_TIMED":        &cfg.Timed,
		"QUAIL_SHOW_ANSWERS": &cfg.ShowAnswers,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

// BadgerDir returns the directory of the badger backend.
func (c Config) BadgerDir() string { return filepath.Join(c.DataDir, "records.badger") }

// Overrides are command-line settings. Empty fields keep the loaded value.
type Overrides struct {
	DataDir  string
	DBPath   string
	Backend  string
	LogLevel string
}

// Apply returns c with o applied and validated. A database path derived
// from the old data directory follows a new one.
func (c Config) Apply(o Overrides) (Config, error) {
	if o.DataDir != "" {
		if o.DBPath == "" && c.DBPath == filepath.Join(c.DataDir, "quail.db") {
			c.DBPath = filepath.Join(o.DataDir, "quail.db")
		}
		c.DataDir = o.DataDir
	}
	if o.DBPath != "" {
		c.DBPath = o.DBPath
	}
	if o.Backend != "" {
		c.Backend = o.Backend
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
