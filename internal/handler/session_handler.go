package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/middleware"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/response"
	ws "github.com/stemsi/classqa/internal/websocket"
)

// Sessions reads and transitions class sessions.
type Sessions interface {
	Get(ctx context.Context, id string) (*model.ClassSession, error)
	CanView(ctx context.Context, session *model.ClassSession, userID string, userType model.UserType) (bool, error)
	Snapshot(ctx context.Context, session *model.ClassSession) (model.SessionUpdate, error)
	ListByProfessor(ctx context.Context, professorID string) ([]model.ClassSession, error)
	Close(ctx context.Context, sessionID, professorID string) (model.SessionUpdate, error)
	Archive(ctx context.Context, sessionID, professorID string) (model.SessionUpdate, error)
}

// SessionContent lists what was posted into a session.
type SessionContent interface {
	ListQuestions(ctx context.Context, sessionID string) ([]model.Question, error)
	ListAnswers(ctx context.Context, sessionID string) ([]model.Answer, error)
}

// Broadcaster fans an event out to a session room.
type Broadcaster interface {
	Broadcast(ctx context.Context, sessionID string, msg ws.Message) error
}

// SessionHandler serves session history and lifecycle endpoints.
type SessionHandler struct {
	sessions Sessions
	content  SessionContent
	rooms    Broadcaster
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions Sessions, content SessionContent, rooms Broadcaster, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		content:  content,
		rooms:    rooms,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// Get godoc
// GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.viewable(c)
	if !ok {
		return
	}
	update, err := h.sessions.Snapshot(c.Request.Context(), session)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session, "students": update.Students})
}

// Questions godoc
// GET /api/v1/sessions/:id/questions
func (h *SessionHandler) Questions(c *gin.Context) {
	session, ok := h.viewable(c)
	if !ok {
		return
	}
	questions, err := h.content.ListQuestions(c.Request.Context(), session.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

// Answers godoc
// GET /api/v1/sessions/:id/answers
func (h *SessionHandler) Answers(c *gin.Context) {
	session, ok := h.viewable(c)
	if !ok {
		return
	}
	answers, err := h.content.ListAnswers(c.Request.Context(), session.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, answers)
}

// ListMine godoc
// GET /api/v1/professors/me/sessions
func (h *SessionHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessions, err := h.sessions.ListByProfessor(c.Request.Context(), claims.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// Close godoc
// POST /api/v1/sessions/:id/close
func (h *SessionHandler) Close(c *gin.Context) {
	h.transition(c, h.sessions.Close)
}

// Archive godoc
// POST /api/v1/sessions/:id/archive
func (h *SessionHandler) Archive(c *gin.Context) {
	h.transition(c, h.sessions.Archive)
}

func (h *SessionHandler) transition(c *gin.Context, fn func(ctx context.Context, sessionID, professorID string) (model.SessionUpdate, error)) {
	claims := middleware.GetClaims(c)
	ctx := c.Request.Context()

	update, err := fn(ctx, c.Param("id"), claims.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}

	msg, err := ws.NewMessage(ws.EventSessionUpdate, "", update)
	if err == nil {
		err = h.rooms.Broadcast(ctx, update.SessionID, msg)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", update.SessionID).Msg("Session update broadcast failed")
	}

	response.Success(c, http.StatusOK, update)
}

func (h *SessionHandler) viewable(c *gin.Context) (*model.ClassSession, bool) {
	claims := middleware.GetClaims(c)
	ctx := c.Request.Context()

	session, err := h.sessions.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	ok, err := h.sessions.CanView(ctx, session, claims.UserID(), claims.UserType)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if !ok {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, code, _ := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
