package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Components that tag every record.
const (
	CompStore  = "store"
	CompLoader = "loader"
	CompIndex  = "index"
	CompPool   = "pool"
	CompUI     = "ui"
	CompFollow = "follow"
	CompConfig = "config"
	CompCLI    = "cli"
)

// LogFile is the name of the rotated log inside Config.Dir.
const LogFile = "debug.log"

// Config controls where and how much osh logs.
type Config struct {
	// Dir holds debug.log. Empty with Debug unset disables logging.
	Dir string

	// Level is "debug", "info" (default), "warn" or "error".
	Level string

	// Format is "json" (default) or "text".
	Format string

	MaxSizeMB  int  // rotate after this many MB (default 10)
	MaxBackups int  // rotated files kept (default 3)
	MaxAgeDays int  // days rotated files are kept (default 7)
	Compress   bool // gzip rotated files

	// RingBufferBytes sizes the in-memory copy dumped on SIGUSR1 (default 2MB).
	RingBufferBytes int

	// AggregateIntervalSecs is how often batched counters are flushed (default 30).
	AggregateIntervalSecs int

	// Debug forces logging on even when Dir is empty.
	Debug bool
}

func (c *Config) applyDefaults() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
	if c.RingBufferBytes <= 0 {
		c.RingBufferBytes = 2 << 20
	}
	if c.AggregateIntervalSecs <= 0 {
		c.AggregateIntervalSecs = 30
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

var (
	mu      sync.RWMutex
	root    *slog.Logger
	ring    *RingBuffer
	agg     *Aggregator
	rotator *lumberjack.Logger
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Init installs the process logger. The TUI owns the terminal, so records only
// ever go to the rotated file and the ring buffer, never to stderr.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg.applyDefaults()

	if !cfg.Debug && cfg.Dir == "" {
		root = discard
		ring = NewRingBuffer(1024)
		agg = NewAggregator(nil, cfg.AggregateIntervalSecs)
		return
	}

	rotator = &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, LogFile),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	ring = NewRingBuffer(cfg.RingBufferBytes)
	out := io.MultiWriter(rotator, ring)

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		root = slog.New(slog.NewTextHandler(out, opts))
	} else {
		root = slog.New(slog.NewJSONHandler(out, opts))
	}

	agg = NewAggregator(root, cfg.AggregateIntervalSecs)
	agg.Start()
}

// Logger returns the process logger, or a discarding one before Init.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return discard
	}
	return root
}

// ForComponent returns a logger tagged with component. It resolves the
// process logger on every record, so package-level loggers declared before
// Init still end up in the log file.
func ForComponent(component string) *slog.Logger {
	return slog.New(&componentHandler{component: component})
}

type componentHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	next := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		next = next.WithAttrs(h.attrs)
	}
	if h.group != "" {
		next = next.WithGroup(h.group)
	}
	return next.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &componentHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{component: h.component, attrs: h.attrs, group: name}
}

// Aggregate counts a high-frequency event; the aggregator logs one
// event_summary per key and interval instead of one record per call.
func Aggregate(component, key string, fields ...slog.Attr) {
	mu.RLock()
	a := agg
	mu.RUnlock()
	if a != nil {
		a.Record(component, key, fields...)
	}
}

// DumpRingBuffer writes the recent records to path.
func DumpRingBuffer(path string) error {
	mu.RLock()
	r := ring
	mu.RUnlock()
	if r == nil {
		return nil
	}
	return r.DumpToFile(path)
}

// Shutdown flushes the aggregator and closes the log file.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()

	if agg != nil {
		agg.Stop()
		agg = nil
	}
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
	root = nil
	ring = nil
}
