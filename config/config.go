// Package config loads pdfview settings from TOML files and the environment.
//
// Priority, lowest to highest: defaults, config files (later files win),
// environment variables. Command-line flags are applied by the caller.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/pelletier/go-toml/v2"
)

// Config is the full pdfview configuration.
type Config struct {
	Cache    CacheConfig    `toml:"cache"`
	Render   RenderConfig   `toml:"render"`
	Print    PrintConfig    `toml:"print"`
	Download DownloadConfig `toml:"download"`
	Logging  LoggingConfig  `toml:"logging"`
}

// CacheConfig controls the instance cache.
type CacheConfig struct {
	Capacity     int  `toml:"capacity"`      // Resident documents before FIFO eviction
	SingleFlight bool `toml:"single_flight"` // Coalesce concurrent loads of one source
}

// RenderConfig holds surface defaults.
type RenderConfig struct {
	Scale          float64 `toml:"scale"`
	ThumbnailWidth int     `toml:"thumbnail_width"` // Pixels; thumbnails ignore Scale
	Rotation       int     `toml:"rotation"`        // Degrees, multiple of 90
	Concurrent     bool    `toml:"concurrent"`      // Paint pages in parallel instead of in order
	TextLayer      bool    `toml:"text_layer"`      // OCR painted pages (needs -tags ocr)
	OCRLanguage    string  `toml:"ocr_language"`    // Tesseract languages, e.g. "eng+fra"
}

// PrintConfig holds print pipeline settings.
type PrintConfig struct {
	DPI        float64  `toml:"dpi"`
	TempDir    string   `toml:"temp_dir"` // Staging root; empty uses os.TempDir
	Headless   bool     `toml:"headless"`
	NoSandbox  bool     `toml:"no_sandbox"`
	Timeout    string   `toml:"timeout"` // e.g. "60s"
	ChromePath string   `toml:"chrome_path"`
	ExtraFlags []string `toml:"extra_flags"`
}

// DownloadConfig holds download settings.
type DownloadConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Capacity: 5,
		},
		Render: RenderConfig{
			Scale:          1.0,
			ThumbnailWidth: 100,
			OCRLanguage:    "eng",
		},
		Print: PrintConfig{
			DPI:      300,
			Headless: true,
			Timeout:  "60s",
		},
		Download: DownloadConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFiles loads defaults, then each file in order, then environment
// overrides. Empty paths are skipped.
func LoadFromFiles(paths ...string) (*Config, error) {
	return Load(NewDefaultConfig(), paths...)
}

// Load is LoadFromFiles starting from base instead of the built-in
// defaults. base is modified and returned.
func Load(base *Config, paths ...string) (*Config, error) {
	cfg := base

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithContext(
				errors.Wrap(err, errors.CodeInvalidConfig, "failed to read config file"),
				"path", path,
			)
		}

		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WithContextMap(
				errors.Wrap(err, errors.CodeInvalidConfig, "failed to parse config file"),
				map[string]interface{}{"path": path, "file": i + 1, "files": len(paths)},
			)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a TOML document over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies PDFVIEW_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PDFVIEW_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Capacity = n
		}
	}
	if v := os.Getenv("PDFVIEW_PRINT_DPI"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Print.DPI = f
		}
	}
	if v := os.Getenv("PDFVIEW_CHROME_PATH"); v != "" {
		cfg.Print.ChromePath = v
	}
	if v := os.Getenv("PDFVIEW_DOWNLOAD_DIR"); v != "" {
		cfg.Download.Dir = v
	}
	if v := os.Getenv("PDFVIEW_OCR_LANGUAGE"); v != "" {
		cfg.Render.OCRLanguage = v
	}
	if v := os.Getenv("PDFVIEW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	invalid := func(field string, value interface{}, msg string) error {
		return errors.WithContextMap(
			errors.New(errors.CodeInvalidConfig, msg),
			map[string]interface{}{"field": field, "value": value},
		)
	}

	if c.Cache.Capacity < 1 {
		return invalid("cache.capacity", c.Cache.Capacity, "cache capacity must be at least 1")
	}
	if c.Render.Scale <= 0 {
		return invalid("render.scale", c.Render.Scale, "render scale must be positive")
	}
	if c.Render.ThumbnailWidth < 1 {
		return invalid("render.thumbnail_width", c.Render.ThumbnailWidth, "thumbnail width must be at least 1 pixel")
	}
	if c.Render.Rotation%90 != 0 {
		return invalid("render.rotation", c.Render.Rotation, "rotation must be a multiple of 90")
	}
	if strings.ContainsAny(c.Render.OCRLanguage, " \t,") {
		return invalid("render.ocr_language", c.Render.OCRLanguage, `OCR languages are joined with "+"`)
	}
	if c.Print.DPI < 72 {
		return invalid("print.dpi", c.Print.DPI, "print resolution must be at least 72 dpi")
	}
	if _, err := c.PrintTimeout(); err != nil {
		return invalid("print.timeout", c.Print.Timeout, "print timeout is not a duration")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", c.Logging.Level, "unknown log level")
	}
	return nil
}

// PrintTimeout parses Print.Timeout. Empty means no timeout.
func (c *Config) PrintTimeout() (time.Duration, error) {
	if c.Print.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Print.Timeout)
}
