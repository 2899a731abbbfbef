// Package config loads ~/.osh/config.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/asheshgoplani/osh/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

const (
	// FileName is the config file inside Dir.
	FileName = "config.toml"
	// HomeEnv overrides the osh directory.
	HomeEnv = "OSH_HOME"
	// DebugEnv turns on debug logging.
	DebugEnv = "OSH_DEBUG"
	// ColorEnv forces a color profile: truecolor, 256, 16 or none.
	ColorEnv = "OSH_COLOR"

	defaultAppendFile = "local.osh"
)

// Config is the user configuration.
type Config struct {
	// Theme is "dark" (default), "light" or "system".
	Theme string `toml:"theme"`

	Search SearchSettings `toml:"search"`
	Append AppendSettings `toml:"append"`
	Logs   LogSettings    `toml:"logs"`
}

// SearchSettings configures `osh search` and `osh cat`.
type SearchSettings struct {
	// Filters start active, e.g. ["duplicates"].
	Filters []string `toml:"filters"`
	// ShowScore shows match scores next to each row.
	ShowScore bool `toml:"show_score"`
	// Format restricts which logs are read: "auto" (both), "text" or "binary".
	Format string `toml:"format"`
	// Merge is "auto", "kway" or "sort".
	Merge string `toml:"merge"`
	// Reader is "mmap" (default) or "stream".
	Reader string `toml:"reader"`
}

// AppendSettings configures `osh append`.
type AppendSettings struct {
	// File is relative to the osh directory unless absolute. Its extension
	// picks the encoding.
	File string `toml:"file"`
}

// LogSettings configures the debug log.
type LogSettings struct {
	Level                 string `toml:"level"`
	Format                string `toml:"format"`
	Dir                   string `toml:"dir"`
	MaxSizeMB             int    `toml:"max_size_mb"`
	MaxBackups            int    `toml:"max_backups"`
	MaxAgeDays            int    `toml:"max_age_days"`
	Compress              bool   `toml:"compress"`
	RingBufferMB          int    `toml:"ring_buffer_mb"`
	AggregateIntervalSecs int    `toml:"aggregate_interval_secs"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Theme: "dark",
		Search: SearchSettings{
			Format: "auto",
			Merge:  "auto",
			Reader: "mmap",
		},
		Append: AppendSettings{File: defaultAppendFile},
	}
}

// Dir is the osh directory: $OSH_HOME, else ~/.osh.
func Dir() (string, error) {
	if d := os.Getenv(HomeEnv); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".osh"), nil
}

// Path is the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

var (
	cache   *Config
	cacheMu sync.RWMutex
)

// Load reads the config once and caches it. A missing file yields defaults.
// A parse error yields defaults together with the error, so the caller can
// report it and carry on.
func Load() (*Config, error) {
	cacheMu.RLock()
	if c := cache; c != nil {
		cacheMu.RUnlock()
		return c, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = Default()
		return cache, nil
	}
	cfg, err := decodeFile(path)
	if err != nil {
		cache = Default()
		return cache, err
	}
	cache = cfg
	return cache, nil
}

func decodeFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s parse error: %w", FileName, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		configLog.Warn("unknown_config_keys", slog.String("keys", strings.Join(keys, ",")))
	}
	return cfg, nil
}

// ClearCache forgets the loaded config; the next Load reads the file again.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// Save writes cfg atomically (temp file, fsync, rename) and clears the cache.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# osh configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	_, werr := f.Write(buf.Bytes())
	serr := f.Sync()
	cerr := f.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize config: %w", err)
	}
	ClearCache()
	return nil
}

// ThemeName normalizes c.Theme to "dark", "light" or "system".
func (c *Config) ThemeName() string {
	switch c.Theme {
	case "light", "system":
		return c.Theme
	}
	return "dark"
}

// ResolveTheme returns "dark" or "light", asking the OS when the theme is
// "system". Detection failures fall back to dark.
func (c *Config) ResolveTheme() string {
	theme := c.ThemeName()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil {
		configLog.Debug("dark_mode_detection_failed", slog.String("error", err.Error()))
		return "dark"
	}
	if isDark {
		return "dark"
	}
	return "light"
}

// AppendPath resolves the append target against the osh directory.
func (c *Config) AppendPath(dir string) string {
	file := c.Append.File
	if file == "" {
		file = defaultAppendFile
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

// Logging builds the logging configuration. Logging stays off unless
// OSH_DEBUG is set or [logs] dir is configured; with OSH_DEBUG alone the log
// goes to the osh directory.
func (c *Config) Logging(dir string) logging.Config {
	debug := os.Getenv(DebugEnv) != ""
	logDir := c.Logs.Dir
	if logDir == "" && debug {
		logDir = dir
	}
	level := c.Logs.Level
	if level == "" && debug {
		level = "debug"
	}
	return logging.Config{
		Dir:                   logDir,
		Level:                 level,
		Format:                c.Logs.Format,
		MaxSizeMB:             c.Logs.MaxSizeMB,
		MaxBackups:            c.Logs.MaxBackups,
		MaxAgeDays:            c.Logs.MaxAgeDays,
		Compress:              c.Logs.Compress,
		RingBufferBytes:       c.Logs.RingBufferMB << 20,
		AggregateIntervalSecs: c.Logs.AggregateIntervalSecs,
		Debug:                 debug,
	}
}
