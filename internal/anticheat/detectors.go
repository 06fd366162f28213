package anticheat

// Attach registers every detector on bus. Detector switches are read from the
// configuration at dispatch time, so UpdateConfig needs no re-registration.
func (m *Monitor) Attach(bus *Bus) error {
	m.mu.Lock()
	if m.attached {
		m.mu.Unlock()
		return ErrAlreadyAttached
	}
	m.attached = true
	m.mu.Unlock()

	m.subs.Add(bus.On(EventFullscreenChange, m.handleFullscreenChange))
	m.subs.Add(bus.On(EventVisibilityChange, m.handleVisibilityChange))
	m.subs.Add(bus.On(EventBlur, m.handleBlur))
	m.subs.Add(bus.On(EventFocus, m.handleFocus))
	m.subs.Add(bus.On(EventKeyDown, m.handleKeyDown))
	m.subs.Add(bus.On(EventCopy, m.handleClipboard("copy")))
	m.subs.Add(bus.On(EventPaste, m.handleClipboard("paste")))
	m.subs.Add(bus.On(EventContextMenu, m.handleContextMenu))
	return nil
}

func (m *Monitor) enabled(detector func(Config) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.IsActive && !m.closed && detector(m.cfg)
}

func (m *Monitor) handleFullscreenChange(ev *PlatformEvent) {
	if !m.enabled(func(c Config) bool { return c.EnableFullscreenMonitoring }) {
		return
	}

	m.mu.Lock()
	m.state.IsFullscreen = ev.Fullscreen
	m.cancelGraceLocked()
	if !ev.Fullscreen {
		g := m.graceGen
		m.graceTimer = m.clk.AfterFunc(m.cfg.GracePeriod(), func() { m.fullscreenGraceElapsed(g) })
	}
	st := m.snapshotLocked()
	onChange := m.hooks.OnChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(st)
	}
}

func (m *Monitor) fullscreenGraceElapsed(g uint64) {
	m.mu.Lock()
	if g != m.graceGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.graceTimer = nil
	stillOut := !m.state.IsFullscreen
	m.mu.Unlock()

	if stillOut {
		m.ReportViolation(FullscreenExit, nil)
	}
}

func (m *Monitor) handleVisibilityChange(ev *PlatformEvent) {
	if !m.enabled(func(c Config) bool { return c.EnableTabSwitchDetection }) {
		return
	}
	m.setTabActive(!ev.Hidden)
	if ev.Hidden {
		m.ReportViolation(TabSwitch, nil)
	}
}

func (m *Monitor) handleBlur(*PlatformEvent) {
	if !m.enabled(func(c Config) bool { return c.EnableTabSwitchDetection }) {
		return
	}
	m.setTabActive(false)
	m.ReportViolation(WindowBlur, nil)
}

func (m *Monitor) handleFocus(*PlatformEvent) {
	if !m.enabled(func(c Config) bool { return c.EnableTabSwitchDetection }) {
		return
	}
	m.setTabActive(true)
}

func (m *Monitor) setTabActive(active bool) {
	m.mu.Lock()
	m.state.IsTabActive = active
	st := m.snapshotLocked()
	onChange := m.hooks.OnChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(st)
	}
}

func (m *Monitor) handleKeyDown(ev *PlatformEvent) {
	if !m.enabled(func(c Config) bool { return c.EnableKeyboardShortcutBlocking }) {
		return
	}

	m.mu.Lock()
	blocked := false
	for _, s := range m.cfg.BlockedShortcuts {
		if s.Matches(ev) {
			blocked = true
			break
		}
	}
	m.mu.Unlock()

	if !blocked {
		return
	}
	ev.PreventDefault()
	m.ReportViolation(KeyboardShortcut, map[string]any{
		"key":      ev.Key,
		"ctrlKey":  ev.CtrlKey,
		"shiftKey": ev.ShiftKey,
		"altKey":   ev.AltKey,
	})
}

func (m *Monitor) handleClipboard(action string) Handler {
	return func(ev *PlatformEvent) {
		if !m.enabled(func(c Config) bool { return c.EnableCopyPasteDetection }) {
			return
		}
		ev.PreventDefault()
		m.ReportViolation(CopyPaste, map[string]any{"action": action})
	}
}

func (m *Monitor) handleContextMenu(ev *PlatformEvent) {
	if !m.enabled(func(c Config) bool { return c.EnableRightClickBlocking }) {
		return
	}
	ev.PreventDefault()
	m.ReportViolation(RightClick, nil)
}
