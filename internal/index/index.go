// Package index ranks the event pool against the current query and filters.
package index

import (
	"cmp"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/logging"
	"github.com/asheshgoplani/osh/internal/matcher"
)

// chunkSize is the number of pool entries scored per goroutine.
const chunkSize = 4096

// Entry is one visible row: its position in the pool, score and the rune
// positions the query matched.
type Entry struct {
	Pool      int
	Score     int
	Positions []int
}

// Index maps visible rank to pool position. Rank 0 is the best match. It
// holds no events, only positions into the pool it was built from.
type Index struct {
	identity bool
	size     int
	entries  []Entry
}

// Identity shows a pool of n events unranked.
func Identity(n int) *Index {
	return &Index{identity: true, size: n}
}

// Build ranks pool for query under filters. An empty query with no filters
// is the identity; an empty query with filters keeps pool order. Otherwise
// every entry is scored in parallel, duplicates keep their first (most
// recent) occurrence and the result is stable-sorted by descending score.
func Build(pool []event.Event, query string, filters FilterSet, scope Scope) *Index {
	if query == "" && filters.Empty() {
		return Identity(len(pool))
	}
	start := time.Now()

	entries := score(pool, query, filters, scope)
	if filters.Has(Duplicates) {
		seen := make(map[string]struct{}, len(entries))
		entries = slices.DeleteFunc(entries, func(en Entry) bool {
			cmd := pool[en.Pool].Command
			if _, dup := seen[cmd]; dup {
				return true
			}
			seen[cmd] = struct{}{}
			return false
		})
	}
	if query != "" {
		slices.SortStableFunc(entries, func(a, b Entry) int { return cmp.Compare(b.Score, a.Score) })
	}

	logging.Aggregate(logging.CompIndex, "rebuild",
		slog.Int("pool", len(pool)),
		slog.Int("visible", len(entries)),
		slog.Duration("took", time.Since(start)),
	)
	return &Index{size: len(entries), entries: entries}
}

// score evaluates predicates and the matcher over pool, fanning out in
// chunks. Entries come back in pool order.
func score(pool []event.Event, query string, filters FilterSet, scope Scope) []Entry {
	scoreRange := func(lo, hi int) []Entry {
		var out []Entry
		for i := lo; i < hi; i++ {
			e := pool[i]
			if !filters.admits(e, scope) {
				continue
			}
			m, ok := matcher.Score(query, e.Command)
			if !ok {
				continue
			}
			out = append(out, Entry{Pool: i, Score: m.Score, Positions: m.Positions})
		}
		return out
	}

	if len(pool) <= chunkSize {
		return scoreRange(0, len(pool))
	}

	chunks := make([][]Entry, (len(pool)+chunkSize-1)/chunkSize)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c := range chunks {
		lo := c * chunkSize
		hi := min(lo+chunkSize, len(pool))
		g.Go(func() error {
			chunks[c] = scoreRange(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
	return slices.Concat(chunks...)
}

// Len is the number of visible entries.
func (ix *Index) Len() int { return ix.size }

// IsIdentity reports an unranked view.
func (ix *Index) IsIdentity() bool { return ix.identity }

// Get returns the pool position shown at rank.
func (ix *Index) Get(rank int) int {
	if ix.identity {
		return rank
	}
	return ix.entries[rank].Pool
}

// Score returns the match score at rank; zero when unranked.
func (ix *Index) Score(rank int) int {
	if ix.identity {
		return 0
	}
	return ix.entries[rank].Score
}

// Positions returns the matched rune positions at rank.
func (ix *Index) Positions(rank int) []int {
	if ix.identity {
		return nil
	}
	return ix.entries[rank].Positions
}

// Entry returns the row at rank.
func (ix *Index) Entry(rank int) Entry {
	if ix.identity {
		return Entry{Pool: rank}
	}
	return ix.entries[rank]
}

// FirstN returns up to n rows starting at rank 0.
func (ix *Index) FirstN(n int) []Entry {
	return ix.Window(0, n)
}

// Window returns up to n rows starting at rank from.
func (ix *Index) Window(from, n int) []Entry {
	from = max(0, min(from, ix.size))
	to := min(from+max(n, 0), ix.size)
	if !ix.identity {
		return ix.entries[from:to]
	}
	out := make([]Entry, 0, to-from)
	for r := from; r < to; r++ {
		out = append(out, Entry{Pool: r})
	}
	return out
}
