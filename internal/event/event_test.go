package event

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndMillis(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	base := start.UnixMilli()

	tests := []struct {
		name     string
		duration float64
		want     int64
	}{
		{"zero", 0, base},
		{"whole seconds", 2, base + 2000},
		{"truncates sub-millisecond", 1.2345, base + 1234},
		{"negative", -1.5, base - 1500},
		{"nan", math.NaN(), base},
		{"positive infinity clamps", math.Inf(1), base + maxDurationMillis},
		{"negative infinity clamps", math.Inf(-1), base - maxDurationMillis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{StartTime: start, Duration: tt.duration}
			assert.Equal(t, tt.want, e.EndMillis())
		})
	}
}

func TestSaturatingAdd(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt64), saturatingAdd(math.MaxInt64-1, 10))
	assert.Equal(t, int64(math.MinInt64), saturatingAdd(math.MinInt64+1, -10))
	assert.Equal(t, int64(5), saturatingAdd(10, -5))
}

func TestCompareNewestFirstIsStable(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	events := []Event{
		{StartTime: start, Command: "a"},
		{StartTime: start.Add(time.Second), Command: "b"},
		{StartTime: start, Command: "c"},
		{StartTime: start.Add(-time.Second), Duration: 1, Command: "d"},
	}
	slices.SortStableFunc(events, CompareNewestFirst)

	var got []string
	for _, e := range events {
		got = append(got, e.Command)
	}
	require.Equal(t, []string{"b", "a", "c", "d"}, got)
}

func TestEqualComparesInstants(t *testing.T) {
	utc := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	zoned := utc.In(time.FixedZone("x", 3600))
	a := Event{StartTime: utc, Command: "ls"}
	b := Event{StartTime: zoned, Command: "ls"}
	assert.True(t, a.Equal(b))

	b.ExitCode = 1
	assert.False(t, a.Equal(b))
}

func TestFilters(t *testing.T) {
	events := []Event{
		{Command: "a", Session: "abc", Folder: "/tmp"},
		{Command: "b", Session: "xyz", Folder: "/tmp"},
		{Command: "c", Session: "abc", Folder: "/home"},
	}
	keep := func(f Filter) []string {
		var out []string
		for _, e := range events {
			if f.Keep(e) {
				out = append(out, e.Command)
			}
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c"}, keep(nil))
	assert.Nil(t, BySession(""))
	assert.Equal(t, []string{"a", "c"}, keep(BySession("abc")))
	assert.Equal(t, []string{"a", "b"}, keep(ByFolder("/tmp")))
	assert.Equal(t, []string{"a"}, keep(All(BySession("abc"), nil, ByFolder("/tmp"))))
	assert.Nil(t, All(nil, nil))
}
