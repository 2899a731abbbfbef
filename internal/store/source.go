// Package store reads and appends history log files.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/logging"
)

var storeLog = logging.ForComponent(logging.CompStore)

// Mode selects how a log file is read.
type Mode int

const (
	// ZeroCopy maps the file and decodes directly from the mapping.
	ZeroCopy Mode = iota
	// Streaming reads frame by frame or line by line through a buffer.
	Streaming
)

func (m Mode) String() string {
	if m == Streaming {
		return "streaming"
	}
	return "zero-copy"
}

// ParseMode accepts "mmap" (or "zero-copy") and "stream" (or "streaming").
// Empty means ZeroCopy.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mmap", "zero-copy", "zerocopy":
		return ZeroCopy, nil
	case "stream", "streaming":
		return Streaming, nil
	}
	return ZeroCopy, fmt.Errorf("unknown reader %q (want mmap or stream)", s)
}

// EventSource yields the events of one log.
type EventSource interface {
	// ReadAll returns the events accepted by filter in write order.
	ReadAll(ctx context.Context, filter event.Filter) ([]event.Event, error)
	// Name identifies the source in errors and logs.
	Name() string
}

// LoadError tags a read failure with the file it came from.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is caused by a missing log file.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Open returns a source for path using mode. The format is chosen by
// extension.
func Open(path string, mode Mode) EventSource {
	if mode == Streaming {
		return &StreamFile{Path: path}
	}
	return &MappedFile{Path: path}
}

// ReadNewestFirst reads path and returns its events in reverse write order.
// Binary logs read in zero-copy mode are traversed backward directly.
func ReadNewestFirst(ctx context.Context, path string, mode Mode, filter event.Filter) ([]event.Event, error) {
	if mode == ZeroCopy && codec.FormatForPath(path) == codec.FormatBinary {
		src := &MappedFile{Path: path, Backward: true}
		return src.ReadAll(ctx, filter)
	}
	events, err := Open(path, mode).ReadAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

// Memory is an in-memory source.
type Memory struct {
	Label  string
	Data   []byte
	Format codec.Format
}

func (m *Memory) Name() string { return m.Label }

func (m *Memory) ReadAll(_ context.Context, filter event.Filter) ([]event.Event, error) {
	events, err := decodeAll(m.Data, m.Format, filter, false)
	if err != nil {
		return nil, &LoadError{Path: m.Label, Err: err}
	}
	return events, nil
}

// decodeAll decodes a whole log held in data.
func decodeAll(data []byte, format codec.Format, filter event.Filter, backward bool) ([]event.Event, error) {
	if format == codec.FormatText {
		var d codec.TextDecoder
		events := d.All(data, filter)
		if d.Skipped > 0 {
			storeLog.Debug("text_lines_skipped", slog.Int("count", d.Skipped))
		}
		if backward {
			slices.Reverse(events)
		}
		return events, nil
	}

	if backward {
		return DecodeFramesBackward(data, filter)
	}
	r := codec.NewFrameReader(data)
	var events []event.Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		if filter.Keep(e) {
			events = append(events, e)
		}
	}
}
