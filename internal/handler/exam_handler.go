package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/exam"
	"github.com/stemsi/jlpt-proctor/internal/middleware"
	"github.com/stemsi/jlpt-proctor/internal/model"
	"github.com/stemsi/jlpt-proctor/internal/response"
	"github.com/stemsi/jlpt-proctor/internal/service"
	"github.com/stemsi/jlpt-proctor/internal/validator"
)

// ExamHandler handles exam attempt endpoints.
type ExamHandler struct {
	sessions *service.ExamSessionService
	log      zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessions *service.ExamSessionService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		sessions: sessions,
		log:      log.With().Str("component", "exam_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/exams/sessions
// Starts an attempt, or returns the open attempt for the same exam title.
func (h *ExamHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.TimeMode == "" {
		req.TimeMode = model.TimeModeDefault
	}

	sess, resumed, err := h.sessions.Start(c.Request.Context(), claims.UserID(), req)
	if err != nil {
		status, code := sessionError(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("user_id", claims.UserID()).Msg("Failed to start exam attempt")
		}
		response.Fail(c, status, code)
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"session": sess.View(), "resumed": resumed})
}

// GetSession godoc
// GET /api/v1/exams/sessions/:id
func (h *ExamHandler) GetSession(c *gin.Context) {
	h.withSession(c, func(userID string, id uuid.UUID) (*exam.Session, error) {
		return h.sessions.Get(userID, id)
	})
}

// PauseSession godoc
// POST /api/v1/exams/sessions/:id/pause
func (h *ExamHandler) PauseSession(c *gin.Context) {
	h.withSession(c, h.sessions.Pause)
}

// ResumeSession godoc
// POST /api/v1/exams/sessions/:id/resume
func (h *ExamHandler) ResumeSession(c *gin.Context) {
	h.withSession(c, h.sessions.Resume)
}

// ResetViolations godoc
// POST /api/v1/exams/sessions/:id/violations/reset
func (h *ExamHandler) ResetViolations(c *gin.Context) {
	h.withSession(c, h.sessions.ResetViolations)
}

// SelectAnswer godoc
// POST /api/v1/exams/sessions/:id/answers
func (h *ExamHandler) SelectAnswer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.withSession(c, func(userID string, id uuid.UUID) (*exam.Session, error) {
		sess, err := h.sessions.Get(userID, id)
		if err != nil {
			return nil, err
		}
		return sess, sess.SelectAnswer(req.QuestionID, req.Answer)
	})
}

// SubmitSession godoc
// POST /api/v1/exams/sessions/:id/submit
func (h *ExamHandler) SubmitSession(c *gin.Context) {
	claims, id, ok := h.params(c)
	if !ok {
		return
	}

	res, err := h.sessions.Submit(claims.UserID(), id)
	if err != nil {
		status, code := sessionError(err)
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// AbandonSession godoc
// DELETE /api/v1/exams/sessions/:id
func (h *ExamHandler) AbandonSession(c *gin.Context) {
	claims, id, ok := h.params(c)
	if !ok {
		return
	}

	if err := h.sessions.Abandon(claims.UserID(), id); err != nil {
		status, code := sessionError(err)
		response.Fail(c, status, code)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListHistory godoc
// GET /api/v1/history
// Returns the user's finished attempts, newest first.
func (h *ExamHandler) ListHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	records, total, err := h.sessions.History(c.Request.Context(), claims.UserID(), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", claims.UserID()).Msg("Failed to list history")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"history": records},
		response.NewPagination(page, perPage, total))
}

// withSession runs op against the caller's attempt and responds with its view.
func (h *ExamHandler) withSession(c *gin.Context, op func(userID string, id uuid.UUID) (*exam.Session, error)) {
	claims, id, ok := h.params(c)
	if !ok {
		return
	}

	sess, err := op(claims.UserID(), id)
	if err != nil {
		status, code := sessionError(err)
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.View()})
}

func (h *ExamHandler) params(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, id, true
}
