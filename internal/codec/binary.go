package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/asheshgoplani/osh/internal/event"
)

const (
	// PrefixSize is the width of the little-endian length prefix.
	PrefixSize = 8

	// MaxPayloadSize caps a single frame. Larger declared lengths are treated
	// as corruption rather than allocated.
	MaxPayloadSize = 16 << 20
)

// MarshalPayload serializes one event as a msgpack map.
func MarshalPayload(e event.Event) ([]byte, error) {
	b, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return b, nil
}

// UnmarshalPayload decodes a msgpack event payload. Positional payloads from
// older writers are accepted too.
func UnmarshalPayload(b []byte) (event.Event, error) {
	if len(b) > 0 && isArrayCode(b[0]) {
		e, err := unmarshalLegacy(b)
		if err != nil {
			return event.Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return e, nil
	}
	var e event.Event
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return event.Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return e, nil
}

// AppendFrame appends the length-prefixed frame for e to dst.
func AppendFrame(dst []byte, e event.Event) ([]byte, error) {
	payload, err := MarshalPayload(e)
	if err != nil {
		return dst, err
	}
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(payload)))
	return append(dst, payload...), nil
}

// EncodeFrame returns the length-prefixed frame for e.
func EncodeFrame(e event.Event) ([]byte, error) {
	return AppendFrame(nil, e)
}

// SplitFrame returns the payload of the frame at the start of data and the
// total number of bytes the frame occupies. It returns io.EOF when data is
// empty. The payload aliases data.
func SplitFrame(data []byte) (payload []byte, n int, err error) {
	if len(data) == 0 {
		return nil, 0, io.EOF
	}
	if len(data) < PrefixSize {
		return nil, 0, &FrameError{Remaining: int64(len(data)), Err: ErrTruncated}
	}
	declared := binary.LittleEndian.Uint64(data)
	remaining := int64(len(data) - PrefixSize)
	if declared > uint64(remaining) {
		return nil, 0, &FrameError{Declared: declared, Remaining: remaining, Err: ErrTruncated}
	}
	if declared > MaxPayloadSize {
		return nil, 0, &FrameError{Declared: declared, Remaining: remaining, Err: ErrMalformed}
	}
	end := PrefixSize + int(declared)
	return data[PrefixSize:end], end, nil
}

// FrameReader decodes frames from an in-memory buffer, typically a memory
// mapped file.
type FrameReader struct {
	data []byte
	off  int64
}

// NewFrameReader returns a reader over data.
func NewFrameReader(data []byte) *FrameReader {
	return &FrameReader{data: data}
}

// NewFrameReaderAt returns a reader positioned at off, which must be a frame
// boundary.
func NewFrameReaderAt(data []byte, off int64) *FrameReader {
	return &FrameReader{data: data, off: off}
}

// Offset is the position of the next frame.
func (r *FrameReader) Offset() int64 { return r.off }

// Next decodes the next event. It returns io.EOF at a clean frame boundary
// and a *FrameError otherwise.
func (r *FrameReader) Next() (event.Event, error) {
	payload, n, err := SplitFrame(r.data[r.off:])
	if err != nil {
		return event.Event{}, r.locate(err)
	}
	e, err := UnmarshalPayload(payload)
	if err != nil {
		return event.Event{}, &FrameError{
			Offset:    r.off,
			Declared:  uint64(len(payload)),
			Remaining: int64(len(r.data)) - r.off - PrefixSize,
			Err:       err,
		}
	}
	r.off += int64(n)
	return e, nil
}

func (r *FrameReader) locate(err error) error {
	var fe *FrameError
	if errors.As(err, &fe) {
		fe.Offset = r.off
	}
	return err
}

// DecodeFrames decodes every frame in data in write order. On corruption the
// already decoded events are discarded and the error is returned.
func DecodeFrames(data []byte) ([]event.Event, error) {
	r := NewFrameReader(data)
	var out []event.Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}

// FrameOffsets scans only the length prefixes of data and returns the offset
// of every frame, in write order.
func FrameOffsets(data []byte) ([]int64, error) {
	var offsets []int64
	var off int64
	for {
		_, n, err := SplitFrame(data[off:])
		if errors.Is(err, io.EOF) {
			return offsets, nil
		}
		if err != nil {
			var fe *FrameError
			if errors.As(err, &fe) {
				fe.Offset = off
			}
			return nil, err
		}
		offsets = append(offsets, off)
		off += int64(n)
	}
}

// ReadFrame reads one frame from r into buf, growing it as needed, and
// returns the payload. A clean end of input before any prefix byte yields
// io.EOF; any shorter read is ErrTruncated.
func ReadFrame(r io.Reader, buf []byte) ([]byte, error) {
	var prefix [PrefixSize]byte
	n, err := io.ReadFull(r, prefix[:])
	switch {
	case errors.Is(err, io.EOF):
		return buf, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return buf, &FrameError{Remaining: int64(n), Err: ErrTruncated}
	case err != nil:
		return buf, err
	}
	declared := binary.LittleEndian.Uint64(prefix[:])
	if declared > MaxPayloadSize {
		return buf, oversized(r, declared)
	}
	if uint64(cap(buf)) < declared {
		buf = make([]byte, declared)
	}
	buf = buf[:declared]
	n, err = io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return buf, &FrameError{Declared: declared, Remaining: int64(n), Err: ErrTruncated}
	}
	return buf, err
}

// oversized classifies a frame declaring more than MaxPayloadSize bytes the
// way SplitFrame does: truncated when the input ends first, malformed
// otherwise. The payload is skipped, never buffered.
func oversized(r io.Reader, declared uint64) error {
	want := int64(math.MaxInt64)
	if declared < uint64(want) {
		want = int64(declared)
	}
	n, err := io.CopyN(io.Discard, r, want)
	switch {
	case errors.Is(err, io.EOF):
		return &FrameError{Declared: declared, Remaining: n, Err: ErrTruncated}
	case err != nil:
		return err
	}
	return &FrameError{Declared: declared, Remaining: n, Err: ErrMalformed}
}
