package loader

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/logging"
	"github.com/asheshgoplani/osh/internal/store"
)

var loaderLog = logging.ForComponent(logging.CompLoader)

// Strategy picks how per-file sequences are combined.
type Strategy int

const (
	// Auto k-way merges when every file is sorted and sorts otherwise.
	Auto Strategy = iota
	// KWay always heap-merges; inputs must be sorted.
	KWay
	// FullSort concatenates and stable-sorts.
	FullSort
)

func (s Strategy) String() string {
	switch s {
	case KWay:
		return "kway"
	case FullSort:
		return "sort"
	}
	return "auto"
}

// ParseStrategy accepts "auto", "kway" or "sort". Empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "kway", "k-way", "merge":
		return KWay, nil
	case "sort":
		return FullSort, nil
	}
	return Auto, fmt.Errorf("unknown merge strategy %q (want auto, kway or sort)", s)
}

// Options configures a load.
type Options struct {
	Mode     store.Mode
	Filter   event.Filter
	Strategy Strategy
	// Unique drops older runs of a command.
	Unique bool
	// Concurrency caps parallel file reads; zero uses GOMAXPROCS.
	Concurrency int
}

// LoadFiles reads every path in parallel and returns one newest-first
// sequence per path, in path order. Any failure cancels the remaining reads
// and no partial result is returned.
func LoadFiles(ctx context.Context, paths []string, opts Options) ([][]event.Event, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	seqs := make([][]event.Event, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			events, err := store.ReadNewestFirst(gctx, path, opts.Mode, opts.Filter)
			if err != nil {
				return err
			}
			seqs[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		loaderLog.Warn("load_failed", slog.String("error", err.Error()))
		return nil, err
	}
	return seqs, nil
}

// Combine merges per-file sequences according to opts.
func Combine(seqs [][]event.Event, opts Options) []event.Event {
	strategy := opts.Strategy
	if strategy == Auto {
		strategy = KWay
		if !Sorted(seqs) {
			strategy = FullSort
			loaderLog.Debug("unsorted_input_fallback")
		}
	}

	var out []event.Event
	if strategy == FullSort {
		out = SortAll(seqs)
	} else {
		out = KMerge(seqs)
	}
	if opts.Unique {
		out = Unique(out)
	}
	return out
}

// Load reads paths and returns their events merged newest first.
func Load(ctx context.Context, paths []string, opts Options) ([]event.Event, error) {
	start := time.Now()
	seqs, err := LoadFiles(ctx, paths, opts)
	if err != nil {
		return nil, err
	}
	out := Combine(seqs, opts)
	loaderLog.Info("load_done",
		slog.Int("files", len(paths)),
		slog.Int("events", len(out)),
		slog.String("mode", opts.Mode.String()),
		slog.String("strategy", opts.Strategy.String()),
		slog.Duration("took", time.Since(start)),
	)
	return out, nil
}

// Produce sends events to out in order and closes out. It stops early when
// ctx is done, which is how an abandoned session releases the producer.
func Produce(ctx context.Context, events []event.Event, out chan<- event.Event) {
	defer close(out)
	for _, e := range events {
		select {
		case out <- e:
		case <-ctx.Done():
			return
		}
	}
}

// ProduceMerged streams the k-way merge of presorted seqs to out without
// materializing it, dropping repeated commands when unique is set. out is
// closed when done.
func ProduceMerged(ctx context.Context, seqs [][]event.Event, unique bool, out chan<- event.Event) {
	defer close(out)
	m := NewMerger(seqs)
	var seen map[string]struct{}
	if unique {
		seen = make(map[string]struct{})
	}
	for e, ok := m.Next(); ok; e, ok = m.Next() {
		if seen != nil {
			if _, dup := seen[e.Command]; dup {
				continue
			}
			seen[e.Command] = struct{}{}
		}
		select {
		case out <- e:
		case <-ctx.Done():
			return
		}
	}
}
