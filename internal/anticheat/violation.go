// Package anticheat detects suspicious browser activity during a timed exam and
// accumulates it as violations until a configured threshold blocks the attempt.
package anticheat

import "time"

// ViolationType is the closed set of detectable events.
type ViolationType string

const (
	TabSwitch        ViolationType = "TAB_SWITCH"
	WindowBlur       ViolationType = "WINDOW_BLUR"
	FullscreenExit   ViolationType = "FULLSCREEN_EXIT"
	CopyPaste        ViolationType = "COPY_PASTE"
	RightClick       ViolationType = "RIGHT_CLICK"
	KeyboardShortcut ViolationType = "KEYBOARD_SHORTCUT"
)

// Severity ranks a violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Violation is a single detected event instance.
type Violation struct {
	Type      ViolationType  `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
}

// Product-defined tables. They carry no derivation; keep them stable.
var (
	violationMessages = map[ViolationType]string{
		TabSwitch:        "Tab switching detected",
		WindowBlur:       "Window focus lost",
		FullscreenExit:   "Fullscreen mode exited",
		CopyPaste:        "Copy/paste attempt detected",
		RightClick:       "Right-click blocked",
		KeyboardShortcut: "Keyboard shortcut blocked",
	}

	violationSeverities = map[ViolationType]Severity{
		TabSwitch:        SeverityHigh,
		WindowBlur:       SeverityHigh,
		FullscreenExit:   SeverityCritical,
		CopyPaste:        SeverityMedium,
		RightClick:       SeverityLow,
		KeyboardShortcut: SeverityMedium,
	}
)

// MessageFor returns the human-readable description of t.
func MessageFor(t ViolationType) string {
	if msg, ok := violationMessages[t]; ok {
		return msg
	}
	return "Unknown violation"
}

// SeverityFor returns the severity of t, medium for unknown types.
func SeverityFor(t ViolationType) Severity {
	if sev, ok := violationSeverities[t]; ok {
		return sev
	}
	return SeverityMedium
}

// Valid reports whether t belongs to the closed set.
func (t ViolationType) Valid() bool {
	_, ok := violationSeverities[t]
	return ok
}

func newViolation(t ViolationType, at time.Time, details map[string]any) Violation {
	if details == nil {
		details = map[string]any{}
	}
	return Violation{
		Type:      t,
		Timestamp: at,
		Message:   MessageFor(t),
		Severity:  SeverityFor(t),
		Details:   details,
	}
}
