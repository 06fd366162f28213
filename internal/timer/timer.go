// Package timer implements the authoritative exam clock for a single attempt.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/jlpt-proctor/internal/clock"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

var (
	ErrInvalidTimeLimit    = errors.New("time limit must be positive")
	ErrCallbackNotAttached = errors.New("time-up callback not attached")
	ErrNilCallback         = errors.New("time-up callback is nil")
	ErrStopped             = errors.New("timer stopped")
)

const tickInterval = time.Second

// Config holds construction inputs for an ExamTimer.
type Config struct {
	TimeLimit int // minutes
	Mode      model.ExamMode
	// InitialTimeRemaining restores a persisted countdown in practice mode.
	// Challenge mode ignores it.
	InitialTimeRemaining *int
	// Unlimited makes the clock count up and never expire.
	Unlimited bool
}

// State is a snapshot of the clock.
type State struct {
	TimeRemaining int  `json:"time_remaining"`
	Elapsed       int  `json:"elapsed"`
	IsPaused      bool `json:"is_paused"`
	IsActive      bool `json:"is_active"`
	Unlimited     bool `json:"unlimited"`
}

// ExamTimer counts an attempt down one second at a time and reports expiry
// exactly once. It is built unwired: AttachCallback must be called before Start.
type ExamTimer struct {
	mu  sync.Mutex
	clk clock.Clock

	limit     int
	unlimited bool
	remaining int
	elapsed   int
	paused    bool
	active    bool
	started   bool
	stopped   bool
	expired   bool

	onTimeUp func()
	onChange func(State)

	// gen invalidates in-flight tick callbacks after pause/stop.
	gen     uint64
	pending clock.Timer
}

// New builds a timer. The caller owns validation of the limit; a non-positive
// limit on a limited timer is rejected.
func New(cfg Config, clk clock.Clock) (*ExamTimer, error) {
	if !cfg.Unlimited && cfg.TimeLimit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTimeLimit, cfg.TimeLimit)
	}
	if clk == nil {
		clk = clock.Real()
	}

	t := &ExamTimer{
		clk:       clk,
		limit:     cfg.TimeLimit * 60,
		unlimited: cfg.Unlimited,
	}
	t.remaining = t.limit

	if cfg.Mode == model.ExamModePractice && cfg.InitialTimeRemaining != nil && !cfg.Unlimited {
		if r := *cfg.InitialTimeRemaining; r >= 0 {
			if r > t.limit {
				r = t.limit
			}
			t.remaining = r
		}
	}
	return t, nil
}

// AttachCallback sets or replaces the function invoked when time runs out.
func (t *ExamTimer) AttachCallback(fn func()) error {
	if fn == nil {
		return ErrNilCallback
	}
	t.mu.Lock()
	t.onTimeUp = fn
	t.mu.Unlock()
	return nil
}

// OnChange registers an observer called after every change of the countdown.
// Observers run outside the timer lock.
func (t *ExamTimer) OnChange(fn func(State)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Start activates the clock. A restored countdown of zero expires immediately.
func (t *ExamTimer) Start() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	if t.onTimeUp == nil {
		t.mu.Unlock()
		return ErrCallbackNotAttached
	}
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true

	if !t.unlimited && t.remaining == 0 {
		fire := t.expireLocked()
		t.mu.Unlock()
		if fire != nil {
			fire()
		}
		return nil
	}

	t.active = true
	if !t.paused {
		t.scheduleLocked()
	}
	t.mu.Unlock()
	return nil
}

// Pause freezes the countdown. Calling it while paused does nothing.
func (t *ExamTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.paused {
		return
	}
	t.paused = true
	t.cancelLocked()
}

// Resume unfreezes the countdown. Calling it while running does nothing.
func (t *ExamTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.paused {
		return
	}
	t.paused = false
	if t.active && !t.stopped {
		t.scheduleLocked()
	}
}

// Tick advances the clock by one second. It is a no-op unless the timer is
// active and not paused. On the transition to zero the timer deactivates and
// the time-up callback runs once, after the state has been updated.
func (t *ExamTimer) Tick() {
	t.mu.Lock()
	if !t.active || t.paused {
		t.mu.Unlock()
		return
	}

	t.elapsed++
	var fire func()
	if !t.unlimited {
		if t.remaining > 0 {
			t.remaining--
		}
		if t.remaining == 0 {
			fire = t.expireLocked()
		}
	}
	st := t.stateLocked()
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(st)
	}
	if fire != nil {
		fire()
	}
}

// Stop tears the timer down, cancelling any scheduled tick. The time-up
// callback is never invoked after Stop.
func (t *ExamTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.active = false
	t.cancelLocked()
}

// Snapshot returns the current clock state.
func (t *ExamTimer) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// TimeLimitSeconds returns the configured limit in seconds, zero when unlimited.
func (t *ExamTimer) TimeLimitSeconds() int {
	return t.limit
}

func (t *ExamTimer) stateLocked() State {
	return State{
		TimeRemaining: t.remaining,
		Elapsed:       t.elapsed,
		IsPaused:      t.paused,
		IsActive:      t.active,
		Unlimited:     t.unlimited,
	}
}

// expireLocked returns the callback to run, or nil if it already ran.
func (t *ExamTimer) expireLocked() func() {
	t.active = false
	t.cancelLocked()
	if t.expired {
		return nil
	}
	t.expired = true
	return t.onTimeUp
}

func (t *ExamTimer) scheduleLocked() {
	t.cancelLocked()
	g := t.gen
	t.pending = t.clk.AfterFunc(tickInterval, func() { t.fire(g) })
}

func (t *ExamTimer) cancelLocked() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *ExamTimer) fire(g uint64) {
	t.mu.Lock()
	if g != t.gen {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()

	t.Tick()

	t.mu.Lock()
	defer t.mu.Unlock()
	if g == t.gen && t.active && !t.paused && !t.stopped {
		t.scheduleLocked()
	}
}

// FormatTime renders seconds as MM:SS, or H:MM:SS from one hour up.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
