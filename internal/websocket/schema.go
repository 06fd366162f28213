package websocket

import (
	"github.com/stemsi/jlpt-proctor/internal/anticheat"
	"github.com/stemsi/jlpt-proctor/internal/exam"
	"github.com/stemsi/jlpt-proctor/internal/model"
	"github.com/stemsi/jlpt-proctor/internal/timer"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionEvent            Action = "event"
	ActionAnswer           Action = "answer"
	ActionFlag             Action = "flag"
	ActionNavigate         Action = "navigate"
	ActionDismissWarning   Action = "dismiss_warning"
	ActionEnterFullscreen  Action = "enter_fullscreen"
	ActionFullscreenResult Action = "fullscreen_result"
	ActionPause            Action = "pause"
	ActionResume           Action = "resume"
	ActionPing             Action = "ping"
	ActionSubmit           Action = "submit"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// EventRequest forwards a browser event to the anti-cheat detectors.
// Ref is echoed back on a prevent directive.
type EventRequest struct {
	Action Action                  `json:"action"`
	Ref    string                  `json:"ref,omitempty"`
	Event  anticheat.PlatformEvent `json:"event"`
}

// AnswerRequest selects an answer.
type AnswerRequest struct {
	Action     Action       `json:"action"`
	QuestionID int          `json:"question_id"`
	Answer     model.Answer `json:"answer"`
}

// FlagRequest toggles the review flag of a question.
type FlagRequest struct {
	Action     Action `json:"action"`
	QuestionID int    `json:"question_id"`
}

// Navigation targets besides an explicit question number.
const (
	NavigateNext     = "next"
	NavigatePrevious = "previous"
	NavigateFlagged  = "flagged"
)

// NavigateRequest moves to a question. Question wins when set.
type NavigateRequest struct {
	Action   Action `json:"action"`
	To       string `json:"to,omitempty"`
	Question int    `json:"question,omitempty"`
}

// FullscreenResultRequest answers a request_fullscreen command.
type FullscreenResultRequest struct {
	Action    Action `json:"action"`
	RequestID string `json:"request_id"`
	Granted   bool   `json:"granted"`
	// Unsupported is set by clients without a Fullscreen API.
	Unsupported bool   `json:"unsupported,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState             Event = "state"
	EventTick              Event = "tick"
	EventAntiCheat         Event = "anti_cheat"
	EventViolation         Event = "violation"
	EventPrevent           Event = "prevent"
	EventRequestFullscreen Event = "request_fullscreen"
	EventExitFullscreen    Event = "exit_fullscreen"
	EventFinalized         Event = "finalized"
	EventError             Event = "error"
	EventPong              Event = "pong"
)

type StateResponse struct {
	Event   Event     `json:"event"`
	Session exam.View `json:"session"`
}

type TickResponse struct {
	Event   Event       `json:"event"`
	Timer   timer.State `json:"timer"`
	Display string      `json:"display"`
}

type AntiCheatResponse struct {
	Event     Event           `json:"event"`
	AntiCheat anticheat.State `json:"anti_cheat"`
}

type ViolationResponse struct {
	Event     Event               `json:"event"`
	Violation anticheat.Violation `json:"violation"`
}

type PreventResponse struct {
	Event Event               `json:"event"`
	Ref   string              `json:"ref,omitempty"`
	Name  anticheat.EventName `json:"name"`
}

type FullscreenCommand struct {
	Event     Event  `json:"event"`
	RequestID string `json:"request_id,omitempty"`
}

type FinalizedResponse struct {
	Event  Event       `json:"event"`
	Result exam.Result `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// FromNotification maps a session notification to its wire event.
func FromNotification(n exam.Notification) (any, bool) {
	switch n.Kind {
	case exam.NotifyTick:
		if n.Timer == nil {
			return nil, false
		}
		display := n.Timer.TimeRemaining
		if n.Timer.Unlimited {
			display = n.Timer.Elapsed
		}
		return TickResponse{Event: EventTick, Timer: *n.Timer, Display: timer.FormatTime(display)}, true
	case exam.NotifyAntiCheat:
		if n.AntiCheat == nil {
			return nil, false
		}
		return AntiCheatResponse{Event: EventAntiCheat, AntiCheat: *n.AntiCheat}, true
	case exam.NotifyViolation:
		if n.Violation == nil {
			return nil, false
		}
		return ViolationResponse{Event: EventViolation, Violation: *n.Violation}, true
	case exam.NotifyFinalized:
		if n.Result == nil {
			return nil, false
		}
		return FinalizedResponse{Event: EventFinalized, Result: *n.Result}, true
	}
	return nil, false
}
