package pipeline

import (
	"sync"
	"time"

	"github.com/jwkim/schemadoc/internal/metadata"
)

// DefaultDebounceWindow is the quiet interval after the last selection
// change before a coalesced dispatch fires. The original interactive
// tooling this replaces used 150ms; 200ms keeps burst toggling cheap
// without a perceptible pause.
const DefaultDebounceWindow = 200 * time.Millisecond

// Coalescer collapses bursts of selection-change events into a single
// downstream dispatch carrying the union of all affected targets,
// fired only after the quiet window elapses with no further Submit.
//
// It is a single-slot pending register with a resettable timer: each
// Submit merges into the pending set and restarts the clock. No history
// is kept — only the latest merged state matters.
type Coalescer struct {
	mu       sync.Mutex
	window   time.Duration
	dispatch func([]metadata.TableRef)
	timer    *time.Timer
	pending  []metadata.TableRef // insertion order preserved
	seen     map[metadata.TableRef]bool
	closed   bool
}

// NewCoalescer creates a coalescer that calls dispatch (on a timer
// goroutine) with the merged targets after each quiet window.
// A non-positive window uses DefaultDebounceWindow.
func NewCoalescer(window time.Duration, dispatch func([]metadata.TableRef)) *Coalescer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Coalescer{
		window:   window,
		dispatch: dispatch,
		seen:     make(map[metadata.TableRef]bool),
	}
}

// Submit merges targets into the pending dispatch and restarts the
// quiet-window timer. Duplicate targets within a burst are unioned;
// first-seen order is kept so downstream output order is predictable.
func (c *Coalescer) Submit(targets ...metadata.TableRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for _, t := range targets {
		if !c.seen[t] {
			c.seen[t] = true
			c.pending = append(c.pending, t)
		}
	}

	if c.timer == nil {
		c.timer = time.AfterFunc(c.window, c.fire)
	} else {
		c.timer.Reset(c.window)
	}
}

// Close tears the coalescer down. A pending dispatch is dropped
// silently: no timer fires into a dead consumer.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.seen = make(map[metadata.TableRef]bool)
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	if c.closed || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.pending
	c.pending = nil
	c.seen = make(map[metadata.TableRef]bool)
	c.mu.Unlock()

	c.dispatch(batch)
}
