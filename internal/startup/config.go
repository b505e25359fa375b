package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"imgdb/internal/logging"
	"imgdb/internal/mediatypes"
)

// DefaultConfigFile is read when no --config flag is given.
const DefaultConfigFile = "imgdbcfg.json"

// EnvPrefix prefixes environment overrides, e.g. IMGDB_STORELOCATION.
const EnvPrefix = "IMGDB"

// Config holds all application configuration
type Config struct {
	Paths             []string `mapstructure:"paths"`
	StoreLocation     string   `mapstructure:"storeLocation"`
	TextEngineCommand []string `mapstructure:"textEngineCommand"`
	ExcludedPaths     []string `mapstructure:"excludedPaths"`
	Extensions        []string `mapstructure:"extensions"`
	OcrLanguage       string   `mapstructure:"ocrLanguage"`

	// Workers caps the feature builder pool; 0 sizes it to the host.
	Workers int `mapstructure:"workers"`

	// Daemon mode
	Listen      string        `mapstructure:"listen"`
	RunInterval time.Duration `mapstructure:"runInterval"`

	// ConfigFile is the file the configuration was read from.
	ConfigFile string `mapstructure:"-"`
}

// legacyKeys maps configuration keys of older catalogs to their current
// names. A current key always wins over its legacy alias.
var legacyKeys = map[string]string{
	"dbpath":       "storeLocation",
	"tesscmd":      "textEngineCommand",
	"excludePaths": "excludedPaths",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths", []string{"img"})
	v.SetDefault("storeLocation", "imgdb.db")
	v.SetDefault("textEngineCommand", []string{"tesseract"})
	v.SetDefault("excludedPaths", []string{filepath.Join("img", "excluded")})
	v.SetDefault("extensions", mediatypes.DefaultExtensions)
	v.SetDefault("ocrLanguage", "eng")
	v.SetDefault("workers", 0)
	v.SetDefault("listen", ":8080")
	v.SetDefault("runInterval", 30*time.Minute)
}

// fileKeys are written to a freshly created configuration file.
var fileKeys = []string{"paths", "storeLocation", "textEngineCommand", "excludedPaths", "extensions"}

// LoadConfig reads the configuration file at path (JSON or YAML by
// extension), applying defaults and IMGDB_* environment overrides. A
// missing file is created with the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		logging.Info("Config file %s not found, writing defaults", path)
		if err := writeDefaults(v, path); err != nil {
			return nil, err
		}
	}

	for legacy, key := range legacyKeys {
		if v.InConfig(legacy) && !v.InConfig(key) {
			logging.Debug("Using legacy config key %q for %q", legacy, key)
			v.SetDefault(key, v.Get(legacy))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	cfg.ConfigFile = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func writeDefaults(v *viper.Viper, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	out := viper.New()
	for _, key := range fileKeys {
		out.Set(key, v.Get(key))
	}
	if err := out.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write default config %s: %w", path, err)
	}
	return nil
}

// Validate checks the values LoadConfig cannot default.
func (c *Config) Validate() error {
	var errs []error

	c.Paths = trimEmpty(c.Paths)
	c.ExcludedPaths = trimEmpty(c.ExcludedPaths)
	c.TextEngineCommand = trimEmpty(c.TextEngineCommand)

	if len(c.Paths) == 0 {
		errs = append(errs, errors.New("paths must name at least one directory"))
	}
	if strings.TrimSpace(c.StoreLocation) == "" {
		errs = append(errs, errors.New("storeLocation must not be empty"))
	}
	if mediatypes.NewExtensions(c.Extensions).Len() == 0 {
		errs = append(errs, errors.New("extensions must list at least one extension"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.RunInterval < 0 {
		errs = append(errs, fmt.Errorf("runInterval must be >= 0, got %v", c.RunInterval))
	}
	return errors.Join(errs...)
}

func trimEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
