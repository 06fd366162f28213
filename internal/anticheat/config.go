package anticheat

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxViolations        = 3
	DefaultGracePeriodMs        = 3000
	DefaultWarningAutoDismissMs = 3000
)

// Shortcut is a blocked key combination. Unset modifiers match any state.
type Shortcut struct {
	Key   string `yaml:"key" json:"key"`
	Ctrl  bool   `yaml:"ctrl,omitempty" json:"ctrl,omitempty"`
	Shift bool   `yaml:"shift,omitempty" json:"shift,omitempty"`
	Alt   bool   `yaml:"alt,omitempty" json:"alt,omitempty"`
}

// Matches reports whether a keydown event triggers the shortcut. Keys compare
// exactly as the browser reports them, so a lowercase "c" with Ctrl held does
// not match a "C" entry.
func (s Shortcut) Matches(ev *PlatformEvent) bool {
	return ev.Key == s.Key &&
		(!s.Ctrl || ev.CtrlKey) &&
		(!s.Shift || ev.ShiftKey) &&
		(!s.Alt || ev.AltKey)
}

// DefaultBlockedShortcuts covers dev tools, clipboard, reload and Alt+Tab.
var DefaultBlockedShortcuts = []Shortcut{
	{Key: "F12"},
	{Key: "I", Ctrl: true, Shift: true},
	{Key: "J", Ctrl: true, Shift: true},
	{Key: "U", Ctrl: true},
	{Key: "C", Ctrl: true},
	{Key: "V", Ctrl: true},
	{Key: "X", Ctrl: true},
	{Key: "R", Ctrl: true},
	{Key: "F5"},
	{Key: "Tab", Alt: true},
}

// Config controls which detectors run and how the threshold behaves.
type Config struct {
	IsActive                       bool `yaml:"is_active" json:"is_active"`
	MaxViolations                  int  `yaml:"max_violations" json:"max_violations"`
	EnableFullscreenMonitoring     bool `yaml:"enable_fullscreen_monitoring" json:"enable_fullscreen_monitoring"`
	EnableTabSwitchDetection       bool `yaml:"enable_tab_switch_detection" json:"enable_tab_switch_detection"`
	EnableCopyPasteDetection       bool `yaml:"enable_copy_paste_detection" json:"enable_copy_paste_detection"`
	EnableRightClickBlocking       bool `yaml:"enable_right_click_blocking" json:"enable_right_click_blocking"`
	EnableKeyboardShortcutBlocking bool `yaml:"enable_keyboard_shortcut_blocking" json:"enable_keyboard_shortcut_blocking"`
	GracePeriodMs                  int  `yaml:"grace_period_ms" json:"grace_period_ms"`
	AutoSubmitOnMaxViolations      bool `yaml:"auto_submit_on_max_violations" json:"auto_submit_on_max_violations"`
	// WarningAutoDismissMs hides a below-threshold warning after a delay. Zero keeps it until dismissed.
	WarningAutoDismissMs int        `yaml:"warning_auto_dismiss_ms" json:"warning_auto_dismiss_ms"`
	BlockedShortcuts     []Shortcut `yaml:"blocked_shortcuts" json:"blocked_shortcuts"`
}

// DefaultConfig returns the stock policy with every detector enabled.
func DefaultConfig() Config {
	shortcuts := make([]Shortcut, len(DefaultBlockedShortcuts))
	copy(shortcuts, DefaultBlockedShortcuts)

	return Config{
		IsActive:                       true,
		MaxViolations:                  DefaultMaxViolations,
		EnableFullscreenMonitoring:     true,
		EnableTabSwitchDetection:       true,
		EnableCopyPasteDetection:       true,
		EnableRightClickBlocking:       true,
		EnableKeyboardShortcutBlocking: true,
		GracePeriodMs:                  DefaultGracePeriodMs,
		AutoSubmitOnMaxViolations:      true,
		WarningAutoDismissMs:           DefaultWarningAutoDismissMs,
		BlockedShortcuts:               shortcuts,
	}
}

// GracePeriod returns GracePeriodMs as a duration.
func (c Config) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMs) * time.Millisecond
}

// Validate checks numeric bounds.
func (c Config) Validate() error {
	if c.MaxViolations < 1 {
		return fmt.Errorf("max_violations must be at least 1, got %d", c.MaxViolations)
	}
	if c.GracePeriodMs < 0 {
		return fmt.Errorf("grace_period_ms must not be negative, got %d", c.GracePeriodMs)
	}
	if c.WarningAutoDismissMs < 0 {
		return fmt.Errorf("warning_auto_dismiss_ms must not be negative, got %d", c.WarningAutoDismissMs)
	}
	return nil
}

// LoadPolicy reads a YAML policy file layered over DefaultConfig.
// An empty path or a missing file yields the defaults.
func LoadPolicy(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read policy: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse policy: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("invalid policy: %w", err)
	}
	return cfg, nil
}
