package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/valyala/fastjson"

	"github.com/asheshgoplani/osh/internal/event"
)

// FormatName identifies the text encoding in its header line.
const FormatName = "osh-history-v1"

// Header is the optional first line of a text log.
type Header struct {
	Format      string  `json:"format"`
	Description *string `json:"description,omitempty"`
}

// DefaultHeader is written at the top of new text logs.
func DefaultHeader() Header {
	return Header{Format: FormatName}
}

type eventLine struct {
	Event event.Event `json:"event"`
}

func encodeJSONLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeHeader returns the header as one newline-terminated line.
func EncodeHeader(h Header) ([]byte, error) {
	b, err := encodeJSONLine(h)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	return b, nil
}

// EncodeLine returns e as one newline-terminated {"event": {...}} line.
// Timestamps keep nanosecond precision. Non-finite durations cannot be
// represented and are rejected.
func EncodeLine(e event.Event) ([]byte, error) {
	if math.IsNaN(e.Duration) || math.IsInf(e.Duration, 0) {
		return nil, fmt.Errorf("encode event: duration %v is not finite", e.Duration)
	}
	b, err := encodeJSONLine(eventLine{Event: e})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// TextDecoder decodes text log lines. Lines that are neither a header nor an
// event are skipped and counted. Not safe for concurrent use.
type TextDecoder struct {
	p fastjson.Parser

	// Header is the first header line seen, if any.
	Header *Header
	// Skipped counts lines dropped as malformed or unknown.
	Skipped int
}

// Line decodes one line without its trailing newline. It reports false for
// header, blank and unparseable lines.
func (d *TextDecoder) Line(line []byte) (event.Event, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(line)) == 0 {
		return event.Event{}, false
	}
	v, err := d.p.ParseBytes(line)
	if err != nil || v.Type() != fastjson.TypeObject {
		d.Skipped++
		return event.Event{}, false
	}
	if ev := v.Get("event"); ev != nil {
		e, err := decodeEventValue(ev)
		if err != nil {
			d.Skipped++
			return event.Event{}, false
		}
		return e, true
	}
	if h, ok := decodeHeaderValue(v); ok {
		if d.Header == nil {
			d.Header = &h
		}
		return event.Event{}, false
	}
	d.Skipped++
	return event.Event{}, false
}

// DecodeText decodes every event in a text log, in file order, keeping those
// accepted by filter.
func DecodeText(data []byte, filter event.Filter) []event.Event {
	var d TextDecoder
	return d.All(data, filter)
}

// All decodes every line of data.
func (d *TextDecoder) All(data []byte, filter event.Filter) []event.Event {
	var out []event.Event
	for line := range bytes.Lines(data) {
		if e, ok := d.Line(line); ok && filter.Keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func decodeHeaderValue(v *fastjson.Value) (Header, bool) {
	f := v.Get("format")
	if f == nil {
		return Header{}, false
	}
	name, err := f.StringBytes()
	if err != nil {
		return Header{}, false
	}
	h := Header{Format: string(name)}
	if desc := v.Get("description"); desc != nil && desc.Type() == fastjson.TypeString {
		s := string(desc.GetStringBytes())
		h.Description = &s
	}
	return h, true
}

func decodeEventValue(v *fastjson.Value) (event.Event, error) {
	obj, err := v.Object()
	if err != nil {
		return event.Event{}, fmt.Errorf("%w: event is not an object", ErrMalformed)
	}

	var e event.Event
	ts := obj.Get("timestamp")
	if ts == nil {
		return event.Event{}, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	raw, err := ts.StringBytes()
	if err != nil {
		return event.Event{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}
	if e.StartTime, err = time.Parse(time.RFC3339Nano, string(raw)); err != nil {
		return event.Event{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}

	cmd := obj.Get("command")
	if cmd == nil {
		return event.Event{}, fmt.Errorf("%w: missing command", ErrMalformed)
	}
	if raw, err = cmd.StringBytes(); err != nil {
		return event.Event{}, fmt.Errorf("%w: command: %v", ErrMalformed, err)
	}
	e.Command = string(raw)

	if d := obj.Get("duration"); d != nil && d.Type() != fastjson.TypeNull {
		if e.Duration, err = d.Float64(); err != nil {
			return event.Event{}, fmt.Errorf("%w: duration: %v", ErrMalformed, err)
		}
	}
	if c := obj.Get("exit-code"); c != nil && c.Type() != fastjson.TypeNull {
		code, err := c.Int()
		if err != nil || code < math.MinInt16 || code > math.MaxInt16 {
			return event.Event{}, fmt.Errorf("%w: exit-code out of range", ErrMalformed)
		}
		e.ExitCode = int16(code)
	}
	e.Folder = optionalString(obj, "folder")
	e.Machine = optionalString(obj, "machine")
	e.Session = optionalString(obj, "session")
	return e, nil
}

func optionalString(obj *fastjson.Object, key string) string {
	v := obj.Get(key)
	if v == nil {
		return ""
	}
	b, err := v.StringBytes()
	if err != nil {
		return ""
	}
	return string(b)
}
