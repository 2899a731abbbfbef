// Package follow streams records appended to history logs while they grow.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/loader"
	"github.com/asheshgoplani/osh/internal/logging"
	"github.com/asheshgoplani/osh/internal/platform"
	"github.com/asheshgoplani/osh/internal/store"
)

var followLog = logging.ForComponent(logging.CompFollow)

// DefaultRate bounds how often grown files are re-read.
const DefaultRate = rate.Limit(10)

// pollInterval paces rescans where file notifications are unreliable.
const pollInterval = time.Second

// Follower tails every log below a root directory.
type Follower struct {
	root     string
	patterns []string
	filter   event.Filter
	limiter  *rate.Limiter

	offsets map[string]int64
	watcher *fsnotify.Watcher
	out     chan event.Event
	ready   chan struct{}

	poll      bool
	pollEvery time.Duration
}

// New prepares a follower for logs below root matching patterns (loader
// defaults when empty). Files start being followed from the offsets
// recorded by Snapshot, or from their beginning when first seen.
func New(root string, filter event.Filter, patterns ...string) *Follower {
	if len(patterns) == 0 {
		patterns = loader.DefaultPatterns()
	}
	// watcher events carry paths below root; match them to the resolved
	// paths Discover returns
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}
	return &Follower{
		root:      root,
		patterns:  patterns,
		filter:    filter,
		limiter:   rate.NewLimiter(DefaultRate, 1),
		offsets:   make(map[string]int64),
		out:       make(chan event.Event, 256),
		ready:     make(chan struct{}),
		pollEvery: pollInterval,
	}
}

// SetRate changes the re-read rate limit.
func (f *Follower) SetRate(r rate.Limit) {
	f.limiter.SetLimit(r)
}

// SetPolling makes Run rescan the tree every interval instead of waiting
// for file notifications. Run switches to polling by itself on filesystems
// where notifications get lost.
func (f *Follower) SetPolling(interval time.Duration) {
	f.poll = true
	if interval > 0 {
		f.pollEvery = interval
	}
}

// snapshotAttempts bounds how often Snapshot reloads while logs keep growing
// under it.
const snapshotAttempts = 3

// Snapshot loads paths through the loader with opts.Mode, remembers where each
// file ends and returns one sequence per path, newest first. Corrupt logs fail
// the snapshot exactly as they fail a plain load. Records appended after the
// recorded ends are delivered by Run.
func (f *Follower) Snapshot(ctx context.Context, paths []string, opts loader.Options) ([][]event.Event, error) {
	opts.Filter = f.filter
	var (
		seqs  [][]event.Event
		sizes map[string]int64
	)
	for attempt := 1; ; attempt++ {
		var err error
		if sizes, err = fileSizes(paths); err != nil {
			return nil, err
		}
		if seqs, err = loader.LoadFiles(ctx, paths, opts); err != nil {
			return nil, err
		}
		after, err := fileSizes(paths)
		if err != nil {
			return nil, err
		}
		if maps.Equal(sizes, after) {
			break
		}
		if attempt == snapshotAttempts {
			followLog.Warn("snapshot_unstable", slog.Int("attempts", attempt))
			break
		}
	}
	maps.Copy(f.offsets, sizes)
	return seqs, nil
}

func fileSizes(paths []string) (map[string]int64, error) {
	sizes := make(map[string]int64, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &store.LoadError{Path: p, Err: err}
		}
		sizes[p] = info.Size()
	}
	return sizes, nil
}

// Events delivers appended records in the order they were written to each
// file. It is closed when Run returns.
func (f *Follower) Events() <-chan event.Event { return f.out }

// Ready is closed once Run has registered its watches.
func (f *Follower) Ready() <-chan struct{} { return f.ready }

// Run watches until ctx is done.
func (f *Follower) Run(ctx context.Context) error {
	defer close(f.out)

	if reason, bad := platform.NotifyUnreliable(f.root); bad && !f.poll {
		followLog.Warn("notify_unreliable_polling", slog.String("reason", reason))
		f.poll = true
	}
	if f.poll {
		return f.runPolling(ctx)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer w.Close()
	f.watcher = w

	if err := f.watchTree(f.root); err != nil {
		return err
	}
	close(f.ready)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			f.handle(ev, pending)
			if len(pending) > 0 && fire == nil {
				timer = time.NewTimer(f.limiter.Reserve().Delay())
				fire = timer.C
			}

		case <-fire:
			fire = nil
			if err := f.flush(ctx, pending); err != nil {
				return err
			}
			clear(pending)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			followLog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (f *Follower) runPolling(ctx context.Context) error {
	close(f.ready)
	ticker := time.NewTicker(f.pollEvery)
	defer ticker.Stop()

	pending := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		paths, err := loader.Discover(f.root, f.patterns...)
		if err != nil {
			followLog.Warn("rescan_failed", slog.String("error", err.Error()))
			continue
		}
		for _, p := range paths {
			if info, err := os.Stat(p); err == nil && info.Size() != f.offsets[p] {
				pending[p] = struct{}{}
			}
		}
		if err := f.flush(ctx, pending); err != nil {
			return err
		}
		clear(pending)
	}
}

func (f *Follower) handle(ev fsnotify.Event, pending map[string]struct{}) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := f.watchTree(ev.Name); err != nil {
				followLog.Warn("watch_new_dir_failed", slog.String("dir", ev.Name), slog.String("error", err.Error()))
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	if !f.matches(ev.Name) {
		return
	}
	pending[ev.Name] = struct{}{}
}

func (f *Follower) matches(path string) bool {
	rel, err := filepath.Rel(f.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range f.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// watchTree adds dir and its subdirectories to the watcher.
func (f *Follower) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := f.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (f *Follower) flush(ctx context.Context, pending map[string]struct{}) error {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		off := f.offsets[p]
		if info, err := os.Stat(p); err == nil && info.Size() < off {
			followLog.Info("file_truncated", slog.String("path", p))
			off = 0
		}
		events, next, err := store.ReadTail(ctx, p, off, f.filter)
		if err != nil {
			if store.IsNotFound(err) {
				delete(f.offsets, p)
				continue
			}
			followLog.Warn("tail_failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		f.offsets[p] = next
		for _, e := range events {
			select {
			case f.out <- e:
			case <-ctx.Done():
				return nil
			}
		}
		if len(events) > 0 {
			followLog.Debug("tail_read", slog.String("path", p), slog.Int("events", len(events)))
		}
	}
	return nil
}
