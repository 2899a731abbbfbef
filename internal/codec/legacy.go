package codec

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/asheshgoplani/osh/internal/event"
)

// legacyFields is the number of elements in a positional record:
// timestamp, command, duration, exit code, folder, machine, session.
const legacyFields = 7

func isArrayCode(c byte) bool {
	return msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32
}

// unmarshalLegacy decodes the positional payload written by older osh
// versions: the fields in declaration order, the timestamp as an RFC 3339
// string and the duration as a 32-bit float.
func unmarshalLegacy(b []byte) (event.Event, error) {
	d := msgpack.NewDecoder(bytes.NewReader(b))
	n, err := d.DecodeArrayLen()
	if err != nil {
		return event.Event{}, err
	}
	if n != legacyFields {
		return event.Event{}, fmt.Errorf("positional record has %d fields, want %d", n, legacyFields)
	}

	stamp, err := d.DecodeString()
	if err != nil {
		return event.Event{}, fmt.Errorf("timestamp: %w", err)
	}
	start, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return event.Event{}, fmt.Errorf("timestamp: %w", err)
	}

	e := event.Event{StartTime: start}
	if e.Command, err = d.DecodeString(); err != nil {
		return event.Event{}, fmt.Errorf("command: %w", err)
	}
	if e.Duration, err = d.DecodeFloat64(); err != nil {
		return event.Event{}, fmt.Errorf("duration: %w", err)
	}
	code, err := d.DecodeInt64()
	if err != nil {
		return event.Event{}, fmt.Errorf("exit-code: %w", err)
	}
	if code < math.MinInt16 || code > math.MaxInt16 {
		return event.Event{}, fmt.Errorf("exit-code %d out of range", code)
	}
	e.ExitCode = int16(code)
	for _, dst := range []*string{&e.Folder, &e.Machine, &e.Session} {
		if *dst, err = d.DecodeString(); err != nil {
			return event.Event{}, err
		}
	}
	return e, nil
}
