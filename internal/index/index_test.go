package index

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/event/eventtest"
	"github.com/asheshgoplani/osh/internal/matcher"
)

func pool(cmds ...string) []event.Event {
	at := time.Unix(1_700_000_000, 0)
	out := make([]event.Event, len(cmds))
	for i, c := range cmds {
		// newest first, like the live pool
		out[i] = event.Event{StartTime: at.Add(-time.Duration(i) * time.Second), Command: c}
	}
	return out
}

func visible(ix *Index, p []event.Event) []string {
	var out []string
	for _, e := range ix.FirstN(ix.Len()) {
		out = append(out, p[e.Pool].Command)
	}
	return out
}

func TestEmptyQueryIsIdentity(t *testing.T) {
	p := pool("a", "b", "c")
	ix := Build(p, "", 0, Scope{})
	require.True(t, ix.IsIdentity())
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, 2, ix.Get(2))
	assert.Zero(t, ix.Score(1))
	assert.Nil(t, ix.Positions(0))
	assert.Equal(t, []string{"a", "b", "c"}, visible(ix, p))
	assert.Len(t, ix.Window(1, 10), 2)
}

func TestDuplicateSuppression(t *testing.T) {
	p := pool("ls", "ls", "cd /tmp")
	ix := Build(p, "", NewFilterSet(Duplicates), Scope{})
	require.Equal(t, 2, ix.Len())
	assert.Equal(t, 0, ix.Get(0), "keeps the most recent ls")
	assert.Equal(t, 2, ix.Get(1))

	ix = Build(p, "l", NewFilterSet(Duplicates), Scope{})
	require.Equal(t, 1, ix.Len())
	assert.Equal(t, 0, ix.Get(0))
}

func TestSessionFilter(t *testing.T) {
	p := pool("a", "b", "c", "d", "e")
	p[1].Session = "abc"
	p[3].Session = "abc"
	p[0].Session = "xyz"

	ix := Build(p, "", NewFilterSet(SessionID), Scope{SessionID: "abc"})
	require.Equal(t, 2, ix.Len())
	assert.Equal(t, []int{1, 3}, []int{ix.Get(0), ix.Get(1)})

	// without a session to compare against the filter is inert
	ix = Build(p, "", NewFilterSet(SessionID), Scope{})
	assert.Equal(t, 5, ix.Len())
}

func TestFolderAndExitCodeFilters(t *testing.T) {
	p := pool("make", "make test", "make lint")
	p[0].Folder = "/src"
	p[1].Folder = "/src"
	p[1].ExitCode = 2
	p[2].Folder = "/tmp"

	ix := Build(p, "make", NewFilterSet(Folder, ExitCodeSuccess), Scope{Folder: "/src"})
	assert.Equal(t, []string{"make"}, visible(ix, p))

	ix = Build(p, "make", NewFilterSet(ExitCodeSuccess), Scope{})
	assert.ElementsMatch(t, []string{"make", "make lint"}, visible(ix, p))
}

func TestRankingOrder(t *testing.T) {
	p := pool("git status", "gst", "echo nothing", "git stash")
	ix := Build(p, "gst", 0, Scope{})

	got := visible(ix, p)
	require.NotEmpty(t, got)
	assert.Equal(t, "gst", got[0], "substring first")
	assert.NotContains(t, got, "echo nothing")
	for r := 1; r < ix.Len(); r++ {
		assert.GreaterOrEqual(t, ix.Score(r-1), ix.Score(r))
	}
	assert.Equal(t, []int{0, 1, 2}, ix.Positions(0))
}

func TestEqualScoresKeepPoolOrder(t *testing.T) {
	p := pool("ls", "ls", "ls")
	ix := Build(p, "ls", 0, Scope{})
	assert.Equal(t, []int{0, 1, 2}, []int{ix.Get(0), ix.Get(1), ix.Get(2)})
}

func TestRebuildIsIdempotent(t *testing.T) {
	g := eventtest.New(21)
	p := g.NewestFirst(3 * chunkSize)
	scope := Scope{SessionID: g.Sessions()[0], Folder: "/tmp"}

	for _, q := range []string{"", "g", "git st", "日", "TODO"} {
		for _, fs := range []FilterSet{0, NewFilterSet(Duplicates), NewFilterSet(SessionID, ExitCodeSuccess), NewFilterSet(AllFilters()...)} {
			a := Build(p, q, fs, scope)
			b := Build(p, q, fs, scope)
			require.Equal(t, a, b, "query %q filters %s", q, fs)
		}
	}
}

// reference ranks sequentially with the same rules.
func reference(p []event.Event, query string, fs FilterSet, scope Scope) []Entry {
	var out []Entry
	seen := map[string]bool{}
	for i, e := range p {
		if !fs.admits(e, scope) {
			continue
		}
		m, ok := matcher.Score(query, e.Command)
		if !ok {
			continue
		}
		if fs.Has(Duplicates) {
			if seen[e.Command] {
				continue
			}
			seen[e.Command] = true
		}
		out = append(out, Entry{Pool: i, Score: m.Score, Positions: m.Positions})
	}
	slices.SortStableFunc(out, func(a, b Entry) int { return b.Score - a.Score })
	return out
}

func TestParallelMatchesSequential(t *testing.T) {
	p := eventtest.New(22).NewestFirst(5*chunkSize + 17)
	for _, q := range []string{"g", "make test", "ü"} {
		for _, fs := range []FilterSet{0, NewFilterSet(Duplicates)} {
			ix := Build(p, q, fs, Scope{})
			want := reference(p, q, fs, Scope{})
			require.Equal(t, len(want), ix.Len(), "query %q", q)
			if len(want) > 0 {
				require.Equal(t, want, ix.FirstN(ix.Len()), "query %q", q)
			}
		}
	}
}

func TestFilterSet(t *testing.T) {
	var s FilterSet
	assert.True(t, s.Empty())
	assert.Equal(t, "", s.String())

	s = s.Toggle(SessionID).Toggle(Duplicates)
	assert.Equal(t, "U | S", s.String())
	assert.True(t, s.Has(SessionID))
	s = s.Toggle(SessionID)
	assert.False(t, s.Has(SessionID))
	assert.Equal(t, []Filter{Duplicates}, s.Filters())
	assert.Equal(t, NewFilterSet(), s.Without(Duplicates))

	parsed, err := ParseFilterSet([]string{"duplicates", "exit-code-success", "Folder"})
	require.NoError(t, err)
	assert.Equal(t, NewFilterSet(Duplicates, ExitCodeSuccess, Folder), parsed)
	assert.Equal(t, "U | F | E", parsed.String())

	_, err = ParseFilterSet([]string{"bogus"})
	require.Error(t, err)

	for _, f := range AllFilters() {
		back, err := ParseFilter(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, back)
	}
	assert.Equal(t, "Filter(9)", fmt.Sprint(Filter(9)))
}
