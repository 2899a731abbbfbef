package loader

import (
	"container/heap"
	"slices"

	"github.com/asheshgoplani/osh/internal/event"
)

// cursor is the head of one input sequence.
type cursor struct {
	seq int
	pos int
	end int64
}

type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }

// Less puts the latest end time on top; equal end times go to the earlier
// sequence, which makes the merge stable across inputs.
func (h cursorHeap) Less(i, j int) bool {
	if h[i].end != h[j].end {
		return h[i].end > h[j].end
	}
	return h[i].seq < h[j].seq
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// Merger interleaves sequences that are each sorted newest first. Its output
// equals a stable newest-first sort of the concatenated inputs, in
// O(N log K).
type Merger struct {
	seqs [][]event.Event
	h    cursorHeap
}

// NewMerger starts a merge over seqs. The slices are read, never modified.
func NewMerger(seqs [][]event.Event) *Merger {
	m := &Merger{seqs: seqs, h: make(cursorHeap, 0, len(seqs))}
	for i, s := range seqs {
		if len(s) > 0 {
			m.h = append(m.h, cursor{seq: i, end: s[0].EndMillis()})
		}
	}
	heap.Init(&m.h)
	return m
}

// Next returns the next event, or false when every input is exhausted.
func (m *Merger) Next() (event.Event, bool) {
	if len(m.h) == 0 {
		return event.Event{}, false
	}
	top := &m.h[0]
	s := m.seqs[top.seq]
	e := s[top.pos]
	top.pos++
	if top.pos < len(s) {
		top.end = s[top.pos].EndMillis()
		heap.Fix(&m.h, 0)
	} else {
		heap.Pop(&m.h)
	}
	return e, true
}

// Remaining counts events not yet returned.
func (m *Merger) Remaining() int {
	n := 0
	for _, c := range m.h {
		n += len(m.seqs[c.seq]) - c.pos
	}
	return n
}

// KMerge merges presorted sequences into one newest-first slice.
func KMerge(seqs [][]event.Event) []event.Event {
	m := NewMerger(seqs)
	out := make([]event.Event, 0, m.Remaining())
	for e, ok := m.Next(); ok; e, ok = m.Next() {
		out = append(out, e)
	}
	return out
}

// SortAll concatenates seqs and stable-sorts newest first. It does not rely
// on the inputs being sorted.
func SortAll(seqs [][]event.Event) []event.Event {
	out := slices.Concat(seqs...)
	slices.SortStableFunc(out, event.CompareNewestFirst)
	return out
}

// Sorted reports whether every sequence is ordered newest first.
func Sorted(seqs [][]event.Event) bool {
	for _, s := range seqs {
		if !slices.IsSortedFunc(s, event.CompareNewestFirst) {
			return false
		}
	}
	return true
}

// Unique keeps the first event of each distinct command. On newest-first
// input that is the most recent run.
func Unique(events []event.Event) []event.Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]event.Event, 0, len(events))
	for _, e := range events {
		if _, dup := seen[e.Command]; dup {
			continue
		}
		seen[e.Command] = struct{}{}
		out = append(out, e)
	}
	return out
}
