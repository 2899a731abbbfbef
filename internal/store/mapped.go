package store

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/event"
)

// MappedFile reads a whole log through a read-only memory mapping. Decoded
// events copy their strings out of the mapping, so nothing refers to it after
// ReadAll returns.
type MappedFile struct {
	Path string
	// Backward returns events newest-written first.
	Backward bool
}

func (m *MappedFile) Name() string { return m.Path }

func (m *MappedFile) ReadAll(ctx context.Context, filter event.Filter) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	f, err := os.Open(m.Path)
	if err != nil {
		return nil, &LoadError{Path: m.Path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &LoadError{Path: m.Path, Err: err}
	}
	data, unmap, err := mapFile(f, info.Size())
	if err != nil {
		return nil, &LoadError{Path: m.Path, Err: err}
	}
	defer func() {
		if err := unmap(); err != nil {
			storeLog.Warn("munmap_failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		}
	}()

	events, err := decodeAll(data, codec.FormatForPath(m.Path), filter, m.Backward)
	if err != nil {
		return nil, &LoadError{Path: m.Path, Err: err}
	}
	storeLog.Debug("file_mapped",
		slog.String("path", m.Path),
		slog.Int64("bytes", info.Size()),
		slog.Int("events", len(events)),
		slog.Duration("took", time.Since(start)),
	)
	return events, nil
}
