package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/jlpt-proctor/internal/exam"
	"github.com/stemsi/jlpt-proctor/internal/response"
	"github.com/stemsi/jlpt-proctor/internal/service"
)

// sessionError maps an exam attempt error to its HTTP status and API code.
func sessionError(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden, response.ErrNotSessionOwner
	case errors.Is(err, exam.ErrFinalized):
		return http.StatusConflict, response.ErrSessionFinalized
	case errors.Is(err, exam.ErrBlocked):
		return http.StatusConflict, response.ErrSessionBlocked
	case errors.Is(err, exam.ErrPauseNotAllowed):
		return http.StatusConflict, response.ErrPauseNotAllowed
	case errors.Is(err, exam.ErrResetNotAllowed):
		return http.StatusConflict, response.ErrResetNotAllowed
	case errors.Is(err, exam.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, exam.ErrQuestionNotFound):
		return http.StatusBadRequest, response.ErrQuestionNotFound
	case errors.Is(err, exam.ErrInvalidAnswer):
		return http.StatusBadRequest, response.ErrInvalidAnswer
	case errors.Is(err, exam.ErrNoFlaggedQuestion):
		return http.StatusNotFound, response.ErrNoFlaggedQuestions
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
