package event

import (
	"cmp"
	"math"
	"time"
)

// maxDurationMillis bounds the millisecond duration used for ordering so that
// StartTime + Duration can never overflow int64.
const maxDurationMillis = 1 << 52

// Event is one executed shell command.
//
// Duration is in seconds and may be fractional. Negative or otherwise corrupt
// durations are kept as written; only the derived end time is clamped.
type Event struct {
	StartTime time.Time `json:"timestamp" msgpack:"timestamp"`
	Command   string    `json:"command" msgpack:"command"`
	Duration  float64   `json:"duration" msgpack:"duration"`
	ExitCode  int16     `json:"exit-code" msgpack:"exit-code"`
	Folder    string    `json:"folder" msgpack:"folder"`
	Machine   string    `json:"machine" msgpack:"machine"`
	Session   string    `json:"session" msgpack:"session"`
}

// DurationMillis returns Duration truncated to whole milliseconds, clamped to
// ±2^52. NaN maps to zero.
func (e Event) DurationMillis() int64 {
	ms := e.Duration * 1000
	switch {
	case math.IsNaN(ms):
		return 0
	case ms >= maxDurationMillis:
		return maxDurationMillis
	case ms <= -maxDurationMillis:
		return -maxDurationMillis
	}
	return int64(ms)
}

// EndMillis is the ordering key: start time plus duration in unix milliseconds.
// The sum saturates instead of wrapping.
func (e Event) EndMillis() int64 {
	return saturatingAdd(e.StartTime.UnixMilli(), e.DurationMillis())
}

// EndTime returns EndMillis as a local time.
func (e Event) EndTime() time.Time {
	return time.UnixMilli(e.EndMillis())
}

// Equal reports whether two events carry the same values. Times are compared
// as instants so a decoded event equals its source regardless of location.
func (e Event) Equal(o Event) bool {
	return e.StartTime.Equal(o.StartTime) &&
		e.Command == o.Command &&
		math.Float64bits(e.Duration) == math.Float64bits(o.Duration) &&
		e.ExitCode == o.ExitCode &&
		e.Folder == o.Folder &&
		e.Machine == o.Machine &&
		e.Session == o.Session
}

// Succeeded reports a zero exit code.
func (e Event) Succeeded() bool {
	return e.ExitCode == 0
}

// CompareNewestFirst orders events by descending end time. Events with equal
// end times compare equal, so stable sorts keep their input order.
func CompareNewestFirst(a, b Event) int {
	return cmp.Compare(b.EndMillis(), a.EndMillis())
}

func saturatingAdd(a, b int64) int64 {
	s := a + b
	if a > 0 && b > 0 && s < 0 {
		return math.MaxInt64
	}
	if a < 0 && b < 0 && s >= 0 {
		return math.MinInt64
	}
	return s
}
