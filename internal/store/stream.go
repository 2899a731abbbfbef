package store

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/event"
)

const (
	streamBufferSize = 64 << 10
	ctxCheckEvery    = 1024
)

// StreamFile reads a log incrementally through a buffered reader, without
// holding the whole file in memory.
type StreamFile struct {
	Path string
	// Offset is where reading starts.
	Offset int64
}

func (s *StreamFile) Name() string { return s.Path }

func (s *StreamFile) ReadAll(ctx context.Context, filter event.Filter) ([]event.Event, error) {
	events, _, err := s.read(ctx, filter, false)
	return events, err
}

// ReadTail reads the complete records of path that start at or after offset.
// A trailing record that is still being written is left for the next call.
// It returns the offset just past the last complete record.
func ReadTail(ctx context.Context, path string, offset int64, filter event.Filter) ([]event.Event, int64, error) {
	s := &StreamFile{Path: path, Offset: offset}
	return s.read(ctx, filter, true)
}

func (s *StreamFile) read(ctx context.Context, filter event.Filter, partial bool) ([]event.Event, int64, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, s.Offset, &LoadError{Path: s.Path, Err: err}
	}
	defer f.Close()

	if s.Offset > 0 {
		if _, err := f.Seek(s.Offset, io.SeekStart); err != nil {
			return nil, s.Offset, &LoadError{Path: s.Path, Err: err}
		}
	}
	br := bufio.NewReaderSize(f, streamBufferSize)

	var events []event.Event
	var next int64
	if codec.FormatForPath(s.Path) == codec.FormatBinary {
		events, next, err = readFrames(ctx, br, s.Offset, filter, partial)
	} else {
		events, next, err = readLines(ctx, br, s.Offset, filter, partial)
	}
	if err != nil {
		return nil, s.Offset, &LoadError{Path: s.Path, Err: err}
	}
	return events, next, nil
}

func readFrames(ctx context.Context, r io.Reader, off int64, filter event.Filter, partial bool) ([]event.Event, int64, error) {
	var events []event.Event
	var buf []byte
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, off, err
			}
		}
		var err error
		buf, err = codec.ReadFrame(r, buf)
		if errors.Is(err, io.EOF) {
			return events, off, nil
		}
		if err != nil {
			if partial && errors.Is(err, codec.ErrTruncated) {
				return events, off, nil
			}
			var fe *codec.FrameError
			if errors.As(err, &fe) {
				fe.Offset = off
			}
			return nil, off, err
		}
		e, err := codec.UnmarshalPayload(buf)
		if err != nil {
			return nil, off, &codec.FrameError{Offset: off, Declared: uint64(len(buf)), Err: err}
		}
		off += codec.PrefixSize + int64(len(buf))
		if filter.Keep(e) {
			events = append(events, e)
		}
	}
}

func readLines(ctx context.Context, br *bufio.Reader, off int64, filter event.Filter, partial bool) ([]event.Event, int64, error) {
	var d codec.TextDecoder
	var events []event.Event
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, off, err
			}
		}
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, off, err
		}
		atEOF := err != nil
		if atEOF && partial {
			// unterminated last line is still being written
			return events, off, nil
		}
		off += int64(len(line))
		if e, ok := d.Line(line); ok && filter.Keep(e) {
			events = append(events, e)
		}
		if atEOF {
			return events, off, nil
		}
	}
}
