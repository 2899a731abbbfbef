package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated means a binary frame ends before its declared length, or a
	// length prefix itself is cut short.
	ErrTruncated = errors.New("truncated frame")

	// ErrMalformed means a record could not be decoded.
	ErrMalformed = errors.New("malformed record")
)

// FrameError locates a binary decoding failure. It unwraps to ErrTruncated or
// ErrMalformed.
type FrameError struct {
	Offset    int64  // byte offset of the frame's length prefix
	Declared  uint64 // declared payload length, 0 if the prefix was unreadable
	Remaining int64  // bytes available after the prefix
	Err       error
}

func (e *FrameError) Error() string {
	if errors.Is(e.Err, ErrTruncated) && e.Declared == 0 {
		return fmt.Sprintf("frame at offset %d: %v: %d byte(s) where an 8-byte length prefix was expected",
			e.Offset, e.Err, e.Remaining)
	}
	return fmt.Sprintf("frame at offset %d: %v (declared %d bytes, %d remaining)",
		e.Offset, e.Err, e.Declared, e.Remaining)
}

func (e *FrameError) Unwrap() error { return e.Err }
