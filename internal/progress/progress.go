// Package progress reports how far a long-running archive operation has got.
package progress

import (
	"sync"
	"time"
)

// Reporter observes progress of one operation.
// current never decreases and never exceeds total.
type Reporter interface {
	OnProgress(current, total int)
}

// Func adapts a plain function to Reporter. A nil Func discards updates.
type Func func(current, total int)

// OnProgress implements Reporter.
func (f Func) OnProgress(current, total int) {
	if f != nil {
		f(current, total)
	}
}

// Discard is a Reporter that drops every update.
var Discard Reporter = Func(nil)

// Tracker enforces the Reporter contract for a producer that may report
// out-of-range or regressing values. Total is fixed when the tracker is made.
type Tracker struct {
	next    Reporter
	total   int
	current int
	started bool
}

// NewTracker returns a tracker forwarding to next. A negative total is
// treated as zero.
func NewTracker(total int, next Reporter) *Tracker {
	if next == nil {
		next = Discard
	}
	return &Tracker{next: next, total: max(total, 0)}
}

// Total returns the fixed total.
func (t *Tracker) Total() int {
	return t.total
}

// Current returns the last forwarded value.
func (t *Tracker) Current() int {
	return t.current
}

// Set moves progress to current, clamped to [previous, total].
// Values that would not advance progress are dropped after the first report.
func (t *Tracker) Set(current int) {
	current = min(max(current, t.current), t.total)
	if t.started && current == t.current {
		return
	}
	t.started = true
	t.current = current
	t.next.OnProgress(current, t.total)
}

// Advance moves progress forward by n.
func (t *Tracker) Advance(n int) {
	t.Set(t.current + n)
}

// Done reports completion.
func (t *Tracker) Done() {
	t.Set(t.total)
}

// Coalescer forwards a subset of updates: the first one, the final one, and
// any that advance by at least a step or arrive after a minimum interval.
type Coalescer struct {
	next        Reporter
	stepPercent float64
	minInterval time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sent     bool
	lastSent int
	lastAt   time.Time
}

// CoalesceOptions tunes a Coalescer.
type CoalesceOptions struct {
	// MinStepPercent is the smallest advance, as a percentage of total,
	// forwarded without waiting for MinInterval. Defaults to 1.
	MinStepPercent float64
	// MinInterval forwards any advance once this much time has passed
	// since the last forwarded update. Zero disables the time rule.
	MinInterval time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewCoalescer wraps next.
func NewCoalescer(next Reporter, opts CoalesceOptions) *Coalescer {
	if next == nil {
		next = Discard
	}
	if opts.MinStepPercent <= 0 {
		opts.MinStepPercent = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coalescer{
		next:        next,
		stepPercent: opts.MinStepPercent,
		minInterval: opts.MinInterval,
		now:         opts.Now,
	}
}

// OnProgress implements Reporter.
func (c *Coalescer) OnProgress(current, total int) {
	c.mu.Lock()
	forward := c.shouldForward(current, total)
	if forward {
		c.sent = true
		c.lastSent = current
		c.lastAt = c.now()
	}
	c.mu.Unlock()

	if forward {
		c.next.OnProgress(current, total)
	}
}

func (c *Coalescer) shouldForward(current, total int) bool {
	if !c.sent {
		return true
	}
	if current <= c.lastSent {
		return false
	}
	if current >= total {
		return true
	}
	step := max(int(float64(total)*c.stepPercent/100), 1)
	if current-c.lastSent >= step {
		return true
	}
	return c.minInterval > 0 && c.now().Sub(c.lastAt) >= c.minInterval
}

// Chain builds the standard pipeline: a Tracker feeding a Coalescer feeding r.
func Chain(total int, r Reporter, opts CoalesceOptions) *Tracker {
	return NewTracker(total, NewCoalescer(r, opts))
}
