// Package config provides configuration management for sprout.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/sprout/internal/archive"
	"github.com/randalmurphal/sprout/internal/db/driver"
	serrors "github.com/randalmurphal/sprout/internal/errors"
	"github.com/randalmurphal/sprout/internal/progress"
	"github.com/randalmurphal/sprout/internal/storage"
	"github.com/randalmurphal/sprout/internal/util"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// SproutDir is the sprout configuration directory
	SproutDir = ".sprout"
)

// DatabaseConfig selects the store backing plants and journals.
type DatabaseConfig struct {
	// Dialect is sqlite (default) or postgres.
	Dialect string `yaml:"dialect" json:"dialect" mapstructure:"dialect"`
	// DSN overrides the sqlite file under DataDir. Required for postgres.
	DSN string `yaml:"dsn,omitempty" json:"dsn" mapstructure:"dsn"`
}

// PhotosConfig locates managed photos.
type PhotosConfig struct {
	// Dir defaults to <data_dir>/photos.
	Dir string `yaml:"dir,omitempty" json:"dir" mapstructure:"dir"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Dir is where archives go when export is given a bare file name.
	Dir string `yaml:"dir,omitempty" json:"dir" mapstructure:"dir"`
	// TempDir holds staging directories. Empty means the OS temp dir.
	TempDir string `yaml:"temp_dir,omitempty" json:"temp_dir" mapstructure:"temp_dir"`
}

// ImportConfig holds import defaults.
type ImportConfig struct {
	Mode string `yaml:"mode" json:"mode" mapstructure:"mode"`
	// MaxEntrySize bounds any single archive entry, in bytes.
	MaxEntrySize int64 `yaml:"max_entry_size" json:"max_entry_size" mapstructure:"max_entry_size"`
}

// ProgressConfig throttles progress updates.
type ProgressConfig struct {
	MinInterval    time.Duration `yaml:"min_interval" json:"min_interval" mapstructure:"min_interval"`
	MinStepPercent float64       `yaml:"min_step_percent" json:"min_step_percent" mapstructure:"min_step_percent"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level string `yaml:"level" json:"level" mapstructure:"level"`
}

// Config represents the sprout configuration.
type Config struct {
	// DataDir holds the sqlite database and, by default, the photo store.
	DataDir  string         `yaml:"data_dir" json:"data_dir" mapstructure:"data_dir"`
	Database DatabaseConfig `yaml:"database" json:"database" mapstructure:"database"`
	Photos   PhotosConfig   `yaml:"photos" json:"photos" mapstructure:"photos"`
	Export   ExportConfig   `yaml:"export" json:"export" mapstructure:"export"`
	Import   ImportConfig   `yaml:"import" json:"import" mapstructure:"import"`
	Progress ProgressConfig `yaml:"progress" json:"progress" mapstructure:"progress"`
	Log      LogConfig      `yaml:"log" json:"log" mapstructure:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := SproutDir
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, SproutDir)
	}
	return &Config{
		DataDir:  dataDir,
		Database: DatabaseConfig{Dialect: string(driver.DialectSQLite)},
		Export:   ExportConfig{Format: string(archive.FormatCSV)},
		Import: ImportConfig{
			Mode:         string(archive.ModeReplace),
			MaxEntrySize: archive.DefaultMaxEntrySize,
		},
		Progress: ProgressConfig{
			MinInterval:    100 * time.Millisecond,
			MinStepPercent: 1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks every field that can be wrong independently of the
// environment. The first problem found is returned as CONFIG_INVALID.
func (c *Config) Validate() error {
	if c.DataDir == "" && c.Database.DSN == "" {
		return serrors.ErrConfigInvalid("data_dir", "must be set unless database.dsn is")
	}
	name := strings.ToLower(c.Database.Dialect)
	if name == "" {
		name = string(driver.DialectSQLite)
	}
	dialect, err := driver.ParseDialect(name)
	if err != nil {
		return serrors.ErrConfigInvalid("database.dialect", err.Error())
	}
	if dialect == driver.DialectPostgres && c.Database.DSN == "" {
		return serrors.ErrConfigInvalid("database.dsn", "required for postgres")
	}
	if _, err := archive.ParseFormat(c.Export.Format); err != nil {
		return serrors.ErrConfigInvalid("export.format", err.Error())
	}
	if _, err := archive.ParseMode(c.Import.Mode); err != nil {
		return serrors.ErrConfigInvalid("import.mode", err.Error())
	}
	if c.Import.MaxEntrySize <= 0 {
		return serrors.ErrConfigInvalid("import.max_entry_size", "must be positive")
	}
	if c.Progress.MinInterval < 0 {
		return serrors.ErrConfigInvalid("progress.min_interval", "must not be negative")
	}
	if c.Progress.MinStepPercent < 0 || c.Progress.MinStepPercent > 100 {
		return serrors.ErrConfigInvalid("progress.min_step_percent", "must be between 0 and 100")
	}
	if _, err := c.LogLevel(); err != nil {
		return serrors.ErrConfigInvalid("log.level", err.Error())
	}
	return nil
}

// StorageOptions returns the options for storage.NewBackend.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		DataDir: c.DataDir,
		Dialect: c.Database.Dialect,
		DSN:     c.Database.DSN,
	}
}

// PhotoDir returns the photo store root.
func (c *Config) PhotoDir() string {
	if c.Photos.Dir != "" {
		return c.Photos.Dir
	}
	return filepath.Join(c.DataDir, "photos")
}

// ExportPath resolves an export destination. Bare file names land in
// export.dir when it is set.
func (c *Config) ExportPath(dest string) string {
	if c.Export.Dir == "" || filepath.IsAbs(dest) || filepath.Base(dest) != dest {
		return dest
	}
	return filepath.Join(c.Export.Dir, dest)
}

// CoalesceOptions returns the progress throttling settings.
func (c *Config) CoalesceOptions() progress.CoalesceOptions {
	return progress.CoalesceOptions{
		MinInterval:    c.Progress.MinInterval,
		MinStepPercent: c.Progress.MinStepPercent,
	}
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", c.Log.Level)
	}
	return level, nil
}

// YAML renders the configuration as it would appear in a config file.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// SaveTo writes the configuration to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(afero.NewOsFs(), path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
