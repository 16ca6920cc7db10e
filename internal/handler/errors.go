package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/classqa/internal/response"
	"github.com/stemsi/classqa/internal/service"
)

// classify maps a service error to an HTTP status and error code. The
// message is the code's canned text, or the error itself for input
// problems the caller can fix.
func classify(err error) (int, response.ErrCode, string) {
	switch {
	case errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrEmptyText),
		errors.Is(err, service.ErrTextTooLong):
		return http.StatusBadRequest, response.ErrValidation, err.Error()
	case errors.Is(err, service.ErrInvalidCode):
		return http.StatusNotFound, response.ErrInvalidClassCode, response.GetMessage(response.ErrInvalidClassCode)
	case errors.Is(err, service.ErrCodeExhausted):
		return http.StatusServiceUnavailable, response.ErrCodeExhausted, response.GetMessage(response.ErrCodeExhausted)
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrAnswerNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, response.ErrNotFound, response.GetMessage(response.ErrNotFound)
	case errors.Is(err, service.ErrSessionNotActive):
		return http.StatusConflict, response.ErrSessionNotActive, response.GetMessage(response.ErrSessionNotActive)
	case errors.Is(err, service.ErrSessionNotClosed):
		return http.StatusConflict, response.ErrSessionNotClosed, response.GetMessage(response.ErrSessionNotClosed)
	case errors.Is(err, service.ErrNotSessionOwner):
		return http.StatusForbidden, response.ErrNotSessionOwner, response.GetMessage(response.ErrNotSessionOwner)
	case errors.Is(err, service.ErrNotJoined):
		return http.StatusForbidden, response.ErrSessionNotJoined, response.GetMessage(response.ErrSessionNotJoined)
	case errors.Is(err, service.ErrQuestionNotInSession):
		return http.StatusBadRequest, response.ErrQuestionNotInScope, response.GetMessage(response.ErrQuestionNotInScope)
	case errors.Is(err, service.ErrAlreadyLiked):
		return http.StatusConflict, response.ErrAlreadyLiked, response.GetMessage(response.ErrAlreadyLiked)
	default:
		return http.StatusInternalServerError, response.ErrInternal, response.GetMessage(response.ErrInternal)
	}
}
