package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPROUT"

// Keys returns every configuration key in dotted form, sorted.
func Keys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := range t.NumField() {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			collectKeys(f.Type, name, keys)
			continue
		}
		*keys = append(*keys, name)
	}
}

// EnvVarName returns the environment variable that overrides key,
// e.g. export.temp_dir -> SPROUT_EXPORT_TEMP_DIR.
func EnvVarName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Loader reads configuration through viper.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.sprout/config.yaml)
//  3. Project config (.sprout/config.yaml), or the file named by --config
//  4. Environment variables (SPROUT_*)
//  5. Bound command-line flags
type Loader struct {
	v          *viper.Viper
	configFile string
	userDir    string
	projectDir string
	flags      map[string]*pflag.Flag
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigFile reads exactly path instead of searching.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) { l.configFile = path }
}

// WithSearchDirs overrides the user and project config directories.
func WithSearchDirs(userDir, projectDir string) LoaderOption {
	return func(l *Loader) {
		l.userDir = userDir
		l.projectDir = projectDir
	}
}

// NewLoader creates a loader with defaults registered.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		v:          viper.New(),
		projectDir: SproutDir,
		flags:      map[string]*pflag.Flag{},
	}
	if home, err := os.UserHomeDir(); err == nil {
		l.userDir = filepath.Join(home, SproutDir)
	}
	for _, opt := range opts {
		opt(l)
	}

	setDefaults(l.v, Default())
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
	return l
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("database.dialect", cfg.Database.Dialect)
	v.SetDefault("database.dsn", cfg.Database.DSN)
	v.SetDefault("photos.dir", cfg.Photos.Dir)
	v.SetDefault("export.format", cfg.Export.Format)
	v.SetDefault("export.dir", cfg.Export.Dir)
	v.SetDefault("export.temp_dir", cfg.Export.TempDir)
	v.SetDefault("import.mode", cfg.Import.Mode)
	v.SetDefault("import.max_entry_size", cfg.Import.MaxEntrySize)
	v.SetDefault("progress.min_interval", cfg.Progress.MinInterval)
	v.SetDefault("progress.min_step_percent", cfg.Progress.MinStepPercent)
	v.SetDefault("log.level", cfg.Log.Level)
}

// BindFlag lets a command-line flag override key when the flag is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: nil flag", key)
	}
	if err := l.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("bind %s: %w", key, err)
	}
	l.flags[key] = flag
	return nil
}

// Load reads the config file, applies overrides and validates the result.
func (l *Loader) Load() (*TrackedConfig, error) {
	if err := l.readConfigFile(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tc := NewTrackedConfig(cfg, l.v.ConfigFileUsed())
	for _, key := range Keys() {
		tc.SetSource(key, l.sourceOf(key))
	}
	return tc, nil
}

func (l *Loader) readConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", l.configFile, err)
		}
		return nil
	}

	l.v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	l.v.SetConfigType("yaml")
	// First match wins, so the project directory shadows the user one.
	l.v.AddConfigPath(l.projectDir)
	if l.userDir != "" {
		l.v.AddConfigPath(l.userDir)
	}
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func (l *Loader) sourceOf(key string) TrackedSource {
	if f, ok := l.flags[key]; ok && f.Changed {
		return TrackedSource{Source: SourceFlag, Path: "--" + f.Name}
	}
	if env := EnvVarName(key); os.Getenv(env) != "" {
		return TrackedSource{Source: SourceEnv, Path: env}
	}
	if used := l.v.ConfigFileUsed(); used != "" && l.v.InConfig(key) {
		return TrackedSource{Source: l.fileSource(used), Path: used}
	}
	return TrackedSource{Source: SourceDefault}
}

func (l *Loader) fileSource(path string) ConfigSource {
	if l.configFile != "" {
		return SourceFile
	}
	if l.userDir != "" && filepath.Dir(path) == filepath.Clean(l.userDir) {
		return SourceUser
	}
	return SourceProject
}
