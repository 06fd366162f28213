package anticheat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/jlpt-proctor/internal/clock"
)

var ErrAlreadyAttached = errors.New("monitor already attached to a bus")

// State is a snapshot of the monitor.
type State struct {
	Violations       []Violation `json:"violations"`
	ViolationCount   int         `json:"violation_count"`
	IsFullscreen     bool        `json:"is_fullscreen"`
	IsTabActive      bool        `json:"is_tab_active"`
	ShowWarning      bool        `json:"show_warning"`
	CurrentViolation *Violation  `json:"current_violation"`
	IsBlocked        bool        `json:"is_blocked"`
}

// Hooks are the monitor's outbound callbacks. All are optional and run
// outside the monitor lock.
type Hooks struct {
	// OnViolation observes every recorded violation.
	OnViolation func(Violation)
	// OnMaxViolations runs once, a grace period after the threshold is first reached.
	OnMaxViolations func()
	// OnChange observes every state change.
	OnChange func(State)
}

// Monitor accumulates violations for one exam attempt.
type Monitor struct {
	mu       sync.Mutex
	cfg      Config
	clk      clock.Clock
	platform Platform
	hooks    Hooks
	log      zerolog.Logger

	state State
	subs  Subscriptions

	attached bool
	closed   bool

	graceTimer   clock.Timer
	graceGen     uint64
	warningTimer clock.Timer
	warningGen   uint64
	maxTimer     clock.Timer
	maxScheduled bool
}

// New creates a Monitor. A nil platform disables fullscreen control.
func New(cfg Config, clk clock.Clock, platform Platform, hooks Hooks, log zerolog.Logger) *Monitor {
	if clk == nil {
		clk = clock.Real()
	}
	return &Monitor{
		cfg:      cfg,
		clk:      clk,
		platform: platform,
		hooks:    hooks,
		log:      log.With().Str("component", "anticheat").Logger(),
		state:    State{IsTabActive: true, Violations: []Violation{}},
	}
}

// Config returns the active configuration.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// UpdateConfig mutates the configuration in place. Detector switches take
// effect on the next event.
func (m *Monitor) UpdateConfig(fn func(*Config)) {
	m.mu.Lock()
	fn(&m.cfg)
	m.mu.Unlock()
}

// State returns a copy of the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// ReportViolation records a violation of type t. It is a no-op while the
// monitor is inactive or closed.
func (m *Monitor) ReportViolation(t ViolationType, details map[string]any) {
	m.mu.Lock()
	if !m.cfg.IsActive || m.closed {
		m.mu.Unlock()
		return
	}

	v := newViolation(t, m.clk.Now(), details)
	m.state.Violations = append(m.state.Violations, v)
	m.state.ViolationCount = len(m.state.Violations)
	m.state.ShowWarning = true
	current := v
	m.state.CurrentViolation = &current

	if m.state.ViolationCount >= m.cfg.MaxViolations {
		m.state.IsBlocked = true
		m.cancelWarningLocked()
		if m.cfg.AutoSubmitOnMaxViolations && !m.maxScheduled {
			m.maxScheduled = true
			m.maxTimer = m.clk.AfterFunc(m.cfg.GracePeriod(), m.fireMaxViolations)
			m.log.Warn().
				Int("violation_count", m.state.ViolationCount).
				Int("max_violations", m.cfg.MaxViolations).
				Msg("Violation threshold reached, auto-submit scheduled")
		}
	} else if m.cfg.WarningAutoDismissMs > 0 {
		m.scheduleWarningDismissLocked(time.Duration(m.cfg.WarningAutoDismissMs) * time.Millisecond)
	}

	st := m.snapshotLocked()
	hooks := m.hooks
	m.mu.Unlock()

	if hooks.OnViolation != nil {
		hooks.OnViolation(v)
	}
	if hooks.OnChange != nil {
		hooks.OnChange(st)
	}
}

// DismissWarning hides the current warning. Counts and the blocked flag are kept.
func (m *Monitor) DismissWarning() {
	m.mu.Lock()
	m.cancelWarningLocked()
	m.state.ShowWarning = false
	m.state.CurrentViolation = nil
	st := m.snapshotLocked()
	onChange := m.hooks.OnChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(st)
	}
}

// ResetViolations clears all violations for a brand-new attempt, cancelling
// any pending auto-submit.
func (m *Monitor) ResetViolations() {
	m.mu.Lock()
	m.cancelWarningLocked()
	if m.maxTimer != nil {
		m.maxTimer.Stop()
		m.maxTimer = nil
	}
	m.maxScheduled = false
	m.state.Violations = []Violation{}
	m.state.ViolationCount = 0
	m.state.ShowWarning = false
	m.state.CurrentViolation = nil
	m.state.IsBlocked = false
	st := m.snapshotLocked()
	onChange := m.hooks.OnChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(st)
	}
}

// RequestFullscreen asks the client to enter fullscreen. A denied request is
// recorded as a FULLSCREEN_EXIT violation and reported as false. A missing
// platform API fails open.
func (m *Monitor) RequestFullscreen(ctx context.Context) bool {
	m.mu.Lock()
	enabled := m.cfg.EnableFullscreenMonitoring
	platform := m.platform
	m.mu.Unlock()

	if !enabled || platform == nil {
		return true
	}

	err := platform.RequestFullscreen(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrUnsupported):
		m.log.Debug().Msg("Fullscreen API unavailable, skipping")
		return true
	default:
		m.log.Warn().Err(err).Msg("Fullscreen request failed")
		m.ReportViolation(FullscreenExit, map[string]any{"error": err.Error()})
		return false
	}
}

// ExitFullscreen asks the client to leave fullscreen. Failures are logged only.
func (m *Monitor) ExitFullscreen(ctx context.Context) {
	m.mu.Lock()
	platform := m.platform
	m.mu.Unlock()

	if platform == nil {
		return
	}
	if err := platform.ExitFullscreen(ctx); err != nil && !errors.Is(err, ErrUnsupported) {
		m.log.Warn().Err(err).Msg("Fullscreen exit failed")
	}
}

// Close detaches every detector and cancels every pending timer. No hook runs
// after Close returns.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.cancelGraceLocked()
	m.cancelWarningLocked()
	if m.maxTimer != nil {
		m.maxTimer.Stop()
		m.maxTimer = nil
	}
	m.mu.Unlock()

	m.subs.Release()
}

func (m *Monitor) fireMaxViolations() {
	m.mu.Lock()
	if m.closed || m.maxTimer == nil {
		m.mu.Unlock()
		return
	}
	m.maxTimer = nil
	m.state.ShowWarning = false
	m.state.CurrentViolation = nil
	st := m.snapshotLocked()
	hooks := m.hooks
	m.mu.Unlock()

	if hooks.OnChange != nil {
		hooks.OnChange(st)
	}
	if hooks.OnMaxViolations != nil {
		hooks.OnMaxViolations()
	}
}

func (m *Monitor) scheduleWarningDismissLocked(d time.Duration) {
	m.cancelWarningLocked()
	g := m.warningGen
	m.warningTimer = m.clk.AfterFunc(d, func() {
		m.mu.Lock()
		if g != m.warningGen || m.closed {
			m.mu.Unlock()
			return
		}
		m.warningTimer = nil
		m.state.ShowWarning = false
		m.state.CurrentViolation = nil
		st := m.snapshotLocked()
		onChange := m.hooks.OnChange
		m.mu.Unlock()

		if onChange != nil {
			onChange(st)
		}
	})
}

func (m *Monitor) cancelWarningLocked() {
	m.warningGen++
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
}

func (m *Monitor) cancelGraceLocked() {
	m.graceGen++
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
}

func (m *Monitor) snapshotLocked() State {
	st := m.state
	st.Violations = make([]Violation, len(m.state.Violations))
	copy(st.Violations, m.state.Violations)
	if m.state.CurrentViolation != nil {
		cv := *m.state.CurrentViolation
		st.CurrentViolation = &cv
	}
	return st
}
