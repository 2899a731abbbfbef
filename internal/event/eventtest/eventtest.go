// Package eventtest builds bounded random events for property tests.
package eventtest

import (
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asheshgoplani/osh/internal/event"
)

var words = []string{
	"ls", "cd", "git", "status", "commit", "-m", "make", "test", "go", "run",
	"docker", "ps", "grep", "-r", "TODO", "/tmp", "~/src", "kubectl", "get",
	"pods", "cargo", "build", "echo", "héllo", "日本語", "ü", "😀", "&&", "|",
}

var folders = []string{"/", "/tmp", "/home/user", "/home/user/src/osh", "/var/log"}

// Generator produces deterministic events from a seed.
type Generator struct {
	r        *rand.Rand
	src      *rand.ChaCha8
	machines []string
	sessions []string

	// Coarse restricts start times and durations to a small grid so that
	// many events share an end time.
	Coarse bool
}

// New returns a generator seeded with seed.
func New(seed uint64) *Generator {
	var key [32]byte
	for i := range key {
		key[i] = byte(seed >> (8 * (i % 8)))
	}
	key[31] ^= 0x5a
	src := rand.NewChaCha8(key)
	g := &Generator{r: rand.New(src), src: src}
	for range 3 {
		g.machines = append(g.machines, "machine_"+g.uuid())
	}
	for range 4 {
		g.sessions = append(g.sessions, g.uuid())
	}
	return g
}

func (g *Generator) uuid() string {
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		// ChaCha8 reads never fail.
		panic(err)
	}
	return id.String()
}

// Sessions returns the session ids events are drawn from.
func (g *Generator) Sessions() []string {
	return slices.Clone(g.sessions)
}

// Event returns one random event. Strings stay short and valid UTF-8, start
// times stay within 1970..2096 and durations within a day.
func (g *Generator) Event() event.Event {
	var start time.Time
	var duration float64
	if g.Coarse {
		start = time.Unix(1_700_000_000+int64(g.r.IntN(20)), 0)
		duration = float64(g.r.IntN(3))
	} else {
		start = time.Unix(g.r.Int64N(4_000_000_000), g.r.Int64N(1_000_000_000))
		switch g.r.IntN(4) {
		case 0:
			duration = 0
		case 1:
			duration = float64(g.r.IntN(10))
		default:
			duration = g.r.Float64() * 86400
		}
	}

	e := event.Event{
		StartTime: start,
		Command:   g.command(),
		Duration:  duration,
		ExitCode:  int16(g.r.IntN(1<<16) - 1<<15),
		Folder:    folders[g.r.IntN(len(folders))],
		Machine:   g.machines[g.r.IntN(len(g.machines))],
		Session:   g.sessions[g.r.IntN(len(g.sessions))],
	}
	if g.r.IntN(3) == 0 {
		e.ExitCode = 0
	}
	return e
}

func (g *Generator) command() string {
	n := g.r.IntN(6)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words[g.r.IntN(len(words))]
	}
	return strings.Join(parts, " ")
}

// Events returns n random events in generation order.
func (g *Generator) Events(n int) []event.Event {
	out := make([]event.Event, n)
	for i := range out {
		out[i] = g.Event()
	}
	return out
}

// NewestFirst returns n random events sorted by descending end time.
func (g *Generator) NewestFirst(n int) []event.Event {
	out := g.Events(n)
	slices.SortStableFunc(out, event.CompareNewestFirst)
	return out
}

// Boundary returns hand-picked edge cases: zero duration, negative exit
// codes, empty and non-ASCII commands, the unix epoch.
func Boundary() []event.Event {
	epoch := time.Unix(0, 0)
	return []event.Event{
		{StartTime: epoch},
		{StartTime: epoch, Command: "", ExitCode: -1},
		{StartTime: epoch.Add(time.Nanosecond), Command: "false", ExitCode: -32768},
		{StartTime: time.Unix(1_700_000_000, 999_999_999), Command: "echo 'héllo 日本語 😀'", Duration: 0.0005, ExitCode: 32767},
		{StartTime: time.Unix(4_000_000_000, 0), Command: "sleep 86400", Duration: 86400, Folder: "/tmp", Machine: "m", Session: "s"},
		{StartTime: time.Unix(1_600_000_000, 0), Command: "tab\tand\\backslash \"quoted\"", Duration: -3},
	}
}
