package store

import (
	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/event"
)

// DecodeFramesBackward decodes a binary log from the last written frame to
// the first. Frames only carry a leading length, so one forward pass over the
// prefixes builds the offset index and payloads are then decoded in reverse.
// Corruption anywhere fails the whole file before any payload is decoded.
func DecodeFramesBackward(data []byte, filter event.Filter) ([]event.Event, error) {
	offsets, err := codec.FrameOffsets(data)
	if err != nil {
		return nil, err
	}
	events := make([]event.Event, 0, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		e, err := codec.NewFrameReaderAt(data, offsets[i]).Next()
		if err != nil {
			return nil, err
		}
		if filter.Keep(e) {
			events = append(events, e)
		}
	}
	return events, nil
}
