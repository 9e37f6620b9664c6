package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Cache.Capacity)
	assert.Equal(t, 1.0, cfg.Render.Scale)
	assert.Equal(t, 300.0, cfg.Print.DPI)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "eng", cfg.Render.OCRLanguage)

	timeout, err := cfg.PrintTimeout()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, timeout)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[cache]
capacity = 3
single_flight = true

[render]
thumbnail_width = 80
rotation = 90
concurrent = true
ocr_language = "eng+fra"

[print]
dpi = 150.0
extra_flags = ["--font-render-hinting=none"]

[logging]
level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Cache.Capacity)
	assert.True(t, cfg.Cache.SingleFlight)
	assert.Equal(t, 1.0, cfg.Render.Scale, "unset keys keep defaults")
	assert.Equal(t, 80, cfg.Render.ThumbnailWidth)
	assert.Equal(t, 90, cfg.Render.Rotation)
	assert.True(t, cfg.Render.Concurrent)
	assert.Equal(t, "eng+fra", cfg.Render.OCRLanguage)
	assert.Equal(t, 150.0, cfg.Print.DPI)
	assert.Equal(t, []string{"--font-render-hinting=none"}, cfg.Print.ExtraFlags)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"zero capacity", "[cache]\ncapacity = 0\n"},
		{"negative scale", "[render]\nscale = -1.0\n"},
		{"odd rotation", "[render]\nrotation = 45\n"},
		{"low dpi", "[print]\ndpi = 10.0\n"},
		{"bad timeout", "[print]\ntimeout = \"soon\"\n"},
		{"bad level", "[logging]\nlevel = \"chatty\"\n"},
		{"comma languages", "[render]\nocr_language = \"eng,fra\"\n"},
		{"broken toml", "[cache\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
		})
	}
}

func TestLoadFromFilesLaterWins(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(base, []byte("[cache]\ncapacity = 7\n[print]\ndpi = 200.0\n"), 0o644))
	require.NoError(t, os.WriteFile(override, []byte("[print]\ndpi = 600.0\n"), 0o644))

	cfg, err := LoadFromFiles(base, "", override)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Cache.Capacity)
	assert.Equal(t, 600.0, cfg.Print.DPI)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PDFVIEW_CACHE_CAPACITY", "2")
	t.Setenv("PDFVIEW_PRINT_DPI", "96")
	t.Setenv("PDFVIEW_LOG_LEVEL", "WARN")
	t.Setenv("PDFVIEW_DOWNLOAD_DIR", "/tmp/out")
	t.Setenv("PDFVIEW_OCR_LANGUAGE", "deu")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Cache.Capacity)
	assert.Equal(t, 96.0, cfg.Print.DPI)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/out", cfg.Download.Dir)
	assert.Equal(t, "deu", cfg.Render.OCRLanguage)
}

func TestLoadFromBase(t *testing.T) {
	t.Setenv("PDFVIEW_LOG_LEVEL", "")
	dir := t.TempDir()
	quiet := filepath.Join(dir, "quiet.toml")
	require.NoError(t, os.WriteFile(quiet, []byte("[cache]\ncapacity = 2\n"), 0o644))
	loud := filepath.Join(dir, "loud.toml")
	require.NoError(t, os.WriteFile(loud, []byte("[logging]\nlevel = \"debug\"\n"), 0o644))

	base := NewDefaultConfig()
	base.Logging.Level = "error"
	cfg, err := Load(base, quiet)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level, "base survives files that do not set it")
	assert.Equal(t, 2, cfg.Cache.Capacity)

	base = NewDefaultConfig()
	base.Logging.Level = "error"
	cfg, err = Load(base, loud)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
