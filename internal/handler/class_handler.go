package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/classqa/internal/response"
	"github.com/stemsi/classqa/internal/service"
	ws "github.com/stemsi/classqa/internal/websocket"
)

// ClassHandler exposes class code lookups over REST.
type ClassHandler struct {
	codes ClassCodes
}

// NewClassHandler creates a new ClassHandler.
func NewClassHandler(codes ClassCodes) *ClassHandler {
	return &ClassHandler{codes: codes}
}

// Validate godoc
// GET /api/v1/classes/:code/validate
func (h *ClassHandler) Validate(c *gin.Context) {
	session, err := h.codes.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			response.Success(c, http.StatusOK, ws.ClassCodeValidated{IsValid: false})
			return
		}
		status, code, _ := classify(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, ws.ClassCodeValidated{
		IsValid:   true,
		ClassName: session.ClassName,
		SessionID: session.ID,
	})
}
