// Package pool collects streamed events for the search session.
package pool

import (
	"log/slog"
	"sync"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/logging"
)

var poolLog = logging.ForComponent(logging.CompPool)

// Collector drains a channel on its own goroutine into a buffer that the UI
// takes from. The lock is only held to append or to swap the buffer out.
type Collector struct {
	mu      sync.Mutex
	pending []event.Event
	total   int
	done    bool

	finished chan struct{}
}

// Collect starts draining src. The collector finishes when src is closed.
func Collect(src <-chan event.Event) *Collector {
	c := &Collector{finished: make(chan struct{})}
	go c.run(src)
	return c
}

func (c *Collector) run(src <-chan event.Event) {
	defer close(c.finished)
	for e := range src {
		c.mu.Lock()
		c.pending = append(c.pending, e)
		c.total++
		c.mu.Unlock()
	}
	c.mu.Lock()
	c.done = true
	total := c.total
	c.mu.Unlock()
	poolLog.Debug("producer_closed", slog.Int("events", total))
}

// Take returns the events received since the last call, in arrival order.
func (c *Collector) Take() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// Done reports whether the source is closed. Events may still be pending.
func (c *Collector) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Total counts every event received so far.
func (c *Collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Wait blocks until the source is closed.
func (c *Collector) Wait() {
	<-c.finished
}

// Pool is the session's append-only event store. Only the session's own
// goroutine touches it.
type Pool struct {
	events []event.Event
}

// Append adds batch and reports whether the pool grew.
func (p *Pool) Append(batch []event.Event) bool {
	if len(batch) == 0 {
		return false
	}
	p.events = append(p.events, batch...)
	logging.Aggregate(logging.CompPool, "drain", slog.Int("size", len(p.events)))
	return true
}

// Events exposes the pool read-only; callers must not modify it.
func (p *Pool) Events() []event.Event { return p.events }

// Len is the pool size.
func (p *Pool) Len() int { return len(p.events) }

// At returns the event at i.
func (p *Pool) At(i int) event.Event { return p.events[i] }
