package logging

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type counterKey struct {
	component string
	event     string
}

type counter struct {
	n    int64
	last []slog.Attr
}

// Aggregator counts repeated events such as index rebuilds and pool drains
// and logs one summary per event and interval.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	counters map[counterKey]*counter

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewAggregator returns an aggregator flushing every intervalSecs. With a nil
// logger recorded events are dropped at flush time.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		counters: make(map[counterKey]*counter),
		stop:     make(chan struct{}),
	}
}

// Start runs the periodic flush.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(a.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				a.Flush()
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop ends the periodic flush and writes whatever is pending.
func (a *Aggregator) Stop() {
	close(a.stop)
	a.wg.Wait()
	a.Flush()
}

// Record bumps the counter for (component, event). The fields of the latest
// call are attached to the summary.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := counterKey{component: component, event: event}
	c := a.counters[k]
	if c == nil {
		c = &counter{}
		a.counters[k] = c
	}
	c.n++
	if len(fields) > 0 {
		c.last = fields
	}
}

// Flush logs and resets all counters, ordered by component then event.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	pending := a.counters
	a.counters = make(map[counterKey]*counter)
	a.mu.Unlock()

	if a.logger == nil || len(pending) == 0 {
		return
	}

	keys := make([]counterKey, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y counterKey) int {
		return cmp.Or(cmp.Compare(x.component, y.component), cmp.Compare(x.event, y.event))
	})

	for _, k := range keys {
		c := pending[k]
		args := []any{
			slog.String("component", k.component),
			slog.String("event", k.event),
			slog.Int64("count", c.n),
			slog.Duration("window", a.interval),
		}
		for _, f := range c.last {
			args = append(args, f)
		}
		a.logger.Info("event_summary", args...)
	}
}
