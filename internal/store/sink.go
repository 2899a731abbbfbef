package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/event"
)

// EventSink accepts encoded events. Each Write lands one complete record.
type EventSink interface {
	Write(e event.Event) error
	Close() error
}

// WriterSink encodes events onto any writer.
type WriterSink struct {
	w      io.Writer
	format codec.Format
	buf    []byte
}

// NewWriterSink returns a sink writing format onto w. Closing it closes w if
// w is an io.Closer.
func NewWriterSink(w io.Writer, format codec.Format) *WriterSink {
	return &WriterSink{w: w, format: format}
}

// WriteHeader writes the text header. It is a no-op for binary logs.
func (s *WriterSink) WriteHeader(h codec.Header) error {
	if s.format != codec.FormatText {
		return nil
	}
	b, err := codec.EncodeHeader(h)
	if err != nil {
		return err
	}
	_, err = s.w.Write(b)
	return err
}

func (s *WriterSink) Write(e event.Event) error {
	var err error
	if s.format == codec.FormatBinary {
		s.buf, err = codec.AppendFrame(s.buf[:0], e)
	} else {
		s.buf, err = codec.EncodeLine(e)
	}
	if err != nil {
		return err
	}
	// a single write per record keeps O_APPEND writers from interleaving
	_, err = s.w.Write(s.buf)
	return err
}

func (s *WriterSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OpenAppend opens path for appending in the format implied by its
// extension, creating it and its directory as needed. A new or empty text
// log gets the default header first.
func OpenAppend(path string) (*WriterSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &LoadError{Path: path, Err: err}
	}

	sink := NewWriterSink(f, codec.FormatForPath(path))
	if info.Size() == 0 {
		if err := sink.WriteHeader(codec.DefaultHeader()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return sink, nil
}

// Append writes one event to the log at path.
func Append(path string, e event.Event) (err error) {
	sink, err := OpenAppend(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sink.Close())
	}()
	if err := sink.Write(e); err != nil {
		return fmt.Errorf("append to %s: %w", path, err)
	}
	storeLog.Debug("event_appended", slog.String("path", path), slog.String("session", e.Session))
	return nil
}
