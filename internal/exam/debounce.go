package exam

import (
	"sync"
	"time"

	"github.com/stemsi/jlpt-proctor/internal/clock"
)

const (
	// DefaultSaveDebounce batches rapid state changes into one write.
	DefaultSaveDebounce = time.Second
	// DefaultSaveMaxWait bounds how long a continuously changing attempt,
	// such as a ticking clock, can go unsaved.
	DefaultSaveMaxWait = 2 * time.Second
)

// Debouncer runs the latest triggered function once the trigger has been
// quiet for delay, or maxWait after the first unflushed trigger, whichever
// comes first. A zero maxWait disables the bound.
type Debouncer struct {
	mu      sync.Mutex
	clk     clock.Clock
	delay   time.Duration
	maxWait time.Duration

	fn      func()
	first   time.Time
	timer   clock.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer(clk clock.Clock, delay, maxWait time.Duration) *Debouncer {
	if clk == nil {
		clk = clock.Real()
	}
	return &Debouncer{clk: clk, delay: delay, maxWait: maxWait}
}

// Trigger replaces the pending function and restarts the delay.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	now := d.clk.Now()
	if d.fn == nil {
		d.first = now
	}
	d.fn = fn

	wait := d.delay
	if d.maxWait > 0 {
		if remain := d.first.Add(d.maxWait).Sub(now); remain < wait {
			wait = remain
		}
	}
	if wait < 0 {
		wait = 0
	}

	d.cancelLocked()
	g := d.gen
	d.timer = d.clk.AfterFunc(wait, func() { d.run(g) })
}

// Pending reports whether a function is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}

// Flush runs the pending function immediately, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fn := d.fn
	d.fn = nil
	d.cancelLocked()
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Stop drops the pending function and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.fn = nil
	d.cancelLocked()
}

func (d *Debouncer) run(g uint64) {
	d.mu.Lock()
	if g != d.gen {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (d *Debouncer) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
