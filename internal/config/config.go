// Package config provides configuration management for pngopt.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/pngopt"
	DefaultConfigFile = "config.yaml"
	DefaultCommand    = "optipng"
	DefaultFormat     = "text"
)

// Sentinel errors for configuration operations.
var (
	ErrInvalidKey    = errors.New("invalid configuration key")
	ErrInvalidFormat = errors.New("invalid output format")
	ErrInvalidValue  = errors.New("invalid configuration value")
	ErrNoEditor      = errors.New("$EDITOR environment variable not set")
)

// validFormats lists the supported report formats in display order.
var validFormats = []string{"text", "yaml", "json"}

// validKeys is built once from Config struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full pngopt configuration.
type Config struct {
	Tool     ToolConfig     `mapstructure:"tool" yaml:"tool" validate:"required"`
	Optimize OptimizeConfig `mapstructure:"optimize" yaml:"optimize"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
}

// ToolConfig locates the optipng binary.
type ToolConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// OptimizeConfig holds the defaults applied to every optimize call.
type OptimizeConfig struct {
	// Level is nil when no -o switch should be passed.
	Level             *int           `mapstructure:"level" yaml:"level" validate:"omitempty,min=0"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
	CheckAvailability bool           `mapstructure:"check_availability" yaml:"check_availability"`
	Flags             map[string]any `mapstructure:"flags" yaml:"flags"`
}

// BatchConfig controls how large path lists are split across invocations.
type BatchConfig struct {
	// Size is the number of files per optipng invocation; 0 means all at once.
	Size int `mapstructure:"size" yaml:"size" validate:"min=0"`
	Jobs int `mapstructure:"jobs" yaml:"jobs" validate:"min=1"`
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text yaml json"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// IsValidFormat returns true if name is a supported output format.
func IsValidFormat(name string) bool {
	return slices.Contains(validFormats, name)
}

// ValidFormatNames returns the supported output formats.
func ValidFormatNames() []string {
	return slices.Clone(validFormats)
}

// Loader provides configuration loading and saving.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a new configuration loader.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	return NewLoaderAt(filepath.Join(home, DefaultConfigDir, DefaultConfigFile), home), nil
}

// NewLoaderAt creates a loader for an explicit config file path.
// homeDir is used to expand "~" in path values.
func NewLoaderAt(configPath, homeDir string) *Loader {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variable binding
	v.SetEnvPrefix("PNGOPT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("tool.path", "PNGOPT_OPTIPNG")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("optimize.level", "PNGOPT_LEVEL")

	l := &Loader{
		v:       v,
		path:    configPath,
		homeDir: homeDir,
	}

	// Set defaults before any config reading
	l.setDefaults()

	return l
}

// setDefaults sets all default configuration values using Viper.
// optimize.level has no default: an absent key means "let optipng decide".
func (l *Loader) setDefaults() {
	l.v.SetDefault("tool.path", DefaultCommand)
	l.v.SetDefault("optimize.debug", false)
	l.v.SetDefault("optimize.check_availability", true)
	l.v.SetDefault("optimize.flags", map[string]any{})
	l.v.SetDefault("batch.size", 0)
	l.v.SetDefault("batch.jobs", 1)
	l.v.SetDefault("output.format", DefaultFormat)
}

// Load reads the configuration file, creating defaults if it doesn't exist.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Tool.Path = l.expandPath(cfg.Tool.Path)

	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Get returns a configuration value by dot-notation key.
func (l *Loader) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return l.v.Get(key), nil
}

// Set sets a configuration value by dot-notation key and writes the file.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if err := validateValue(key, value); err != nil {
		return err
	}

	l.v.Set(key, value)
	return l.v.WriteConfig()
}

// validateValue rejects values Load would later fail to decode or validate.
func validateValue(key, value string) error {
	switch key {
	case "output.format":
		if !IsValidFormat(value) {
			return fmt.Errorf("%w: %s (valid: %s)", ErrInvalidFormat, value, strings.Join(validFormats, ", "))
		}
	case "optimize.level", "batch.size":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidValue, key)
		}
	case "batch.jobs":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: %s must be a positive integer", ErrInvalidValue, key)
		}
	case "optimize.debug", "optimize.check_availability":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%w: %s must be true or false", ErrInvalidValue, key)
		}
	}
	return nil
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return l.v.SafeWriteConfigAs(l.path)
}

// expandPath replaces ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}

// ValidateKey checks if a key is a valid configuration key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	if validKeys[key] {
		return nil
	}

	// optimize.flags is a free-form map of optipng switches.
	if strings.HasPrefix(key, "optimize.flags.") && len(key) > len("optimize.flags.") {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// buildValidKeys builds the set of valid keys from Config struct using reflection.
func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	addKeysFromType(reflect.TypeOf(Config{}), "", keys)
	return keys
}

// addKeysFromType recursively adds keys from a struct type.
func addKeysFromType(t reflect.Type, prefix string, keys map[string]bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		keys[key] = true

		// Recurse into nested structs (but not maps)
		if field.Type.Kind() == reflect.Struct {
			addKeysFromType(field.Type, key, keys)
		}
	}
}
