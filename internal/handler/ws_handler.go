package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/exam"
	"github.com/stemsi/jlpt-proctor/internal/middleware"
	"github.com/stemsi/jlpt-proctor/internal/model"
	"github.com/stemsi/jlpt-proctor/internal/response"
	"github.com/stemsi/jlpt-proctor/internal/service"
	ws "github.com/stemsi/jlpt-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the exam attempt stream.
type WSHandler struct {
	sessions *service.ExamSessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/exams/sessions/:id/stream
// Streams browser events into the attempt and pushes state, warnings and
// fullscreen commands back.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, release, err := h.sessions.Connect(claims.UserID(), id)
	if err != nil {
		status, code := sessionError(err)
		response.Fail(c, status, code)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	wsLog := h.log.With().
		Str("user_id", claims.UserID()).
		Str("session_id", id.String()).
		Logger()

	client := ws.NewClient(conn, wsLog)
	defer client.Close()
	go client.WritePump()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-client.Done()
		cancel()
	}()

	detach := sess.AttachClient(client)
	defer detach()
	unwatch := sess.Watch(func(n exam.Notification) {
		h.forward(ctx, client, sess, n)
	})
	defer unwatch()

	wsLog.Info().Msg("Client connected")
	client.Send(ws.StateResponse{Event: ws.EventState, Session: sess.View()})

	if done, _ := sess.Finalized(); !done && sess.Mode() == model.ExamModeChallenge && sess.Monitor().Config().IsActive {
		go sess.RequestFullscreen(ctx)
	}

	for {
		data, err := client.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		h.dispatch(ctx, client, sess, data, wsLog)
	}
}

// forward turns a session notification into an outbound event.
func (h *WSHandler) forward(ctx context.Context, client *ws.Client, sess *exam.Session, n exam.Notification) {
	if n.Kind == exam.NotifyState {
		client.Send(ws.StateResponse{Event: ws.EventState, Session: sess.View()})
		return
	}
	if ev, ok := ws.FromNotification(n); ok {
		client.Send(ev)
	}
	if n.Kind == exam.NotifyFinalized {
		sess.ExitFullscreen(ctx)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, client *ws.Client, sess *exam.Session, data []byte, log zerolog.Logger) {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		sendError(client, response.ErrInvalidPayload)
		return
	}

	switch env.Action {
	case ws.ActionEvent:
		var req ws.EventRequest
		if !decode(client, data, &req) {
			return
		}
		if sess.Dispatch(&req.Event) {
			client.Send(ws.PreventResponse{Event: ws.EventPrevent, Ref: req.Ref, Name: req.Event.Name})
		}

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if !decode(client, data, &req) {
			return
		}
		reply(client, sess.SelectAnswer(req.QuestionID, req.Answer))

	case ws.ActionFlag:
		var req ws.FlagRequest
		if !decode(client, data, &req) {
			return
		}
		_, err := sess.ToggleFlag(req.QuestionID)
		reply(client, err)

	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if !decode(client, data, &req) {
			return
		}
		reply(client, navigate(sess, req))

	case ws.ActionDismissWarning:
		sess.DismissWarning()

	case ws.ActionEnterFullscreen:
		go sess.RequestFullscreen(ctx)

	case ws.ActionFullscreenResult:
		var req ws.FullscreenResultRequest
		if !decode(client, data, &req) {
			return
		}
		if !client.ResolveFullscreen(req) {
			log.Debug().Str("request_id", req.RequestID).Msg("Stale fullscreen result")
		}

	case ws.ActionPause:
		if err := sess.Pause(); err != nil {
			reply(client, err)
			return
		}
		client.Send(ws.StateResponse{Event: ws.EventState, Session: sess.View()})

	case ws.ActionResume:
		if err := sess.Resume(); err != nil {
			reply(client, err)
			return
		}
		client.Send(ws.StateResponse{Event: ws.EventState, Session: sess.View()})

	case ws.ActionPing:
		client.Send(ws.PongResponse{Event: ws.EventPong})

	case ws.ActionSubmit:
		if _, err := sess.Submit(); err != nil {
			reply(client, err)
		}

	default:
		log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
		client.Send(ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrInvalidPayload), Error: "unknown action: " + string(env.Action)})
	}
}

func navigate(sess *exam.Session, req ws.NavigateRequest) error {
	if req.Question > 0 {
		return sess.GoTo(req.Question)
	}
	switch req.To {
	case ws.NavigateNext:
		return sess.Next()
	case ws.NavigatePrevious:
		return sess.Previous()
	case ws.NavigateFlagged:
		_, err := sess.ShowFlagged()
		return err
	}
	return exam.ErrQuestionNotFound
}

func decode(client *ws.Client, data []byte, dst any) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		sendError(client, response.ErrInvalidPayload)
		return false
	}
	return true
}

// reply reports err to the client. Successful mutations are announced by
// the session's own state notification.
func reply(client *ws.Client, err error) {
	if err == nil {
		return
	}
	_, code := sessionError(err)
	sendError(client, code)
}

func sendError(client *ws.Client, code response.ErrCode) {
	client.Send(ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)})
}
