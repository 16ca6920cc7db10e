package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/middleware"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/response"
	"github.com/stemsi/classqa/internal/service"
	ws "github.com/stemsi/classqa/internal/websocket"
)

// ClassCodes allocates and resolves class codes.
type ClassCodes interface {
	Generate(ctx context.Context, professorID, className string) (*model.ClassSession, error)
	Validate(ctx context.Context, code string) (*model.ClassSession, error)
}

// Membership admits participants into session rooms.
type Membership interface {
	Join(ctx context.Context, sessionID, userID string, userType model.UserType) (model.SessionUpdate, error)
	RequireMember(ctx context.Context, sessionID, userID string, userType model.UserType) (*model.ClassSession, error)
}

// Classroom posts questions, answers and likes.
type Classroom interface {
	Ask(ctx context.Context, sessionID, studentID, text string) (*model.Question, error)
	Answer(ctx context.Context, sessionID, studentID string, in model.Answer) (*model.Answer, *model.Question, error)
	Like(ctx context.Context, sessionID, userID, answerID string) (*model.Answer, error)
}

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
			if origin == "" {
				// Non-browser clients such as the terminal app send no Origin.
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the classroom socket.
type WSHandler struct {
	codes     ClassCodes
	members   Membership
	classroom Classroom
	hub       *ws.Hub
	timeout   time.Duration
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. timeout bounds each command.
func NewWSHandler(codes ClassCodes, members Membership, classroom Classroom, hub *ws.Hub, timeout time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WSHandler{
		codes:     codes,
		members:   members,
		classroom: classroom,
		hub:       hub,
		timeout:   timeout,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// Classroom godoc
// WS /ws/v1/classroom?ticket=...
// Upgrades to the classroom socket. Commands are answered with events that
// echo the command's requestId.
func (h *WSHandler) Classroom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTicketRequired)
		return
	}

	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	connLog := h.log.With().
		Str("user_id", claims.UserID()).
		Str("user_type", string(claims.UserType)).
		Logger()

	conn := ws.NewConn(socket, claims.UserID(), claims.UserType, connLog)
	go conn.WritePump()
	defer func() {
		h.hub.Leave(conn)
		conn.Close()
	}()

	connLog.Info().Msg("Participant connected")

	for {
		cmd, err := conn.ReadCommand()
		if err != nil {
			if errors.Is(err, ws.ErrMalformedCommand) {
				connLog.Debug().Err(err).Msg("Dropping malformed command")
				conn.ReplyError("", string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			if ws.IsUnexpectedClose(err) {
				connLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				connLog.Debug().Msg("Connection closed")
			}
			return
		}

		select {
		case <-conn.Done():
			return
		default:
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		h.dispatch(ctx, conn, cmd)
		cancel()
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn *ws.Conn, cmd ws.Command) {
	switch cmd.Action {
	case ws.ActionGenerateClassCode:
		h.handleGenerate(ctx, conn, cmd)
	case ws.ActionValidateClassCode:
		h.handleValidate(ctx, conn, cmd)
	case ws.ActionJoinSession:
		h.handleJoin(ctx, conn, cmd)
	case ws.ActionSendQuestion:
		h.handleQuestion(ctx, conn, cmd)
	case ws.ActionSendAnswer:
		h.handleAnswer(ctx, conn, cmd)
	case ws.ActionLikeAnswer:
		h.handleLike(ctx, conn, cmd)
	case ws.ActionPing:
		conn.Reply(ws.EventPong, cmd.RequestID, nil)
	default:
		h.log.Warn().Str("action", string(cmd.Action)).Msg("Unknown action")
		conn.ReplyError(cmd.RequestID, string(response.ErrUnknownAction), response.GetMessage(response.ErrUnknownAction)+" "+string(cmd.Action))
	}
}

// handleGenerate opens a session for the calling professor and moves the
// connection into its room.
func (h *WSHandler) handleGenerate(ctx context.Context, conn *ws.Conn, cmd ws.Command) {
	if conn.UserType != model.UserTypeProfessor {
		h.replyCode(conn, cmd.RequestID, response.ErrProfessorOnly)
		return
	}
	var req ws.GenerateClassCodeRequest
	if !h.decode(conn, cmd, &req) {
		return
	}
	if req.ProfessorID != "" && req.ProfessorID != conn.UserID {
		h.replyCode(conn, cmd.RequestID, response.ErrProfessorMismatch)
		return
	}

	session, err := h.codes.Generate(ctx, conn.UserID, req.ClassName)
	if err != nil {
		h.replyErr(conn, cmd.RequestID, err)
		return
	}

	h.hub.Join(session.ID, conn)
	conn.Reply(ws.EventClassCodeGenerated, cmd.RequestID, ws.ClassCodeGenerated{
		Code:      session.Code,
		ClassName: session.ClassName,
		SessionID: session.ID,
	})
}

// handleValidate resolves a code. Unknown codes are a normal negative
// result, not an error.
func (h *WSHandler) handleValidate(ctx context.Context, conn *ws.Conn, cmd ws.Command) {
	var req ws.ValidateClassCodeRequest
	if !h.decode(conn, cmd, &req) {
		return
	}

	session, err := h.codes.Validate(ctx, req.Code)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			conn.Reply(ws.EventClassCodeValidated, cmd.RequestID, ws.ClassCodeValidated{IsValid: false})
			return
		}
		h.replyErr(conn, cmd.RequestID, err)
		return
	}

	conn.Reply(ws.EventClassCodeValidated, cmd.RequestID, ws.ClassCodeValidated{
		IsValid:   true,
		ClassName: session.ClassName,
		SessionID: session.ID,
	})
}

// handleJoin admits the connection into a room and announces the new
// roster to everyone there, the joiner included.
func (h *WSHandler) handleJoin(ctx context.Context, conn *ws.Conn, cmd ws.Command) {
	var req ws.JoinSessionRequest
	if !h.decode(conn, cmd, &req) {
		return
	}

	update, err := h.members.Join(ctx, req.SessionID, conn.UserID, conn.UserType)
	if err != nil {
		h.replyErr(conn, cmd.RequestID, err)
		return
	}

	h.hub.Join(req.SessionID, conn)
	h.broadcast(ctx, conn, req.SessionID, ws.EventSessionUpdate, cmd.RequestID, update)
}

func (h *WSHandler) handleQuestion(ctx context.Context, conn *ws.Conn, cmd ws.Command) {
	var req ws.SendQuestionRequest
	if !h.decode(conn, cmd, &req) {
		return
	}
	sessionID, ok := h.requireRoom(ctx, conn, cmd.RequestID)
	if !ok {
		return
	}

	q, err := h.classroom.Ask(ctx, sessionID, conn.UserID, req.Question.Text)
	if err != nil {
		h.replyErr(conn, cmd.RequestID, err)
		return
	}
	h.broadcast(ctx, conn, sessionID, ws.EventQuestionUpdate, cmd.RequestID, q.Anonymous())
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *ws.Conn, cmd ws.Command) {
	var req ws.SendAnswerRequest
	if !h.decode(conn, cmd, &req) {
		return
	}
	sessionID, ok := h.requireRoom(ctx, conn, cmd.RequestID)
	if !ok {
		return
	}

	a, answered, err := h.classroom.Answer(ctx, sessionID, conn.UserID, req.Answer)
	if err != nil {
		h.replyErr(conn, cmd.RequestID, err)
		return
	}
	h.broadcast(ctx, conn, sessionID, ws.EventAnswerUpdate, cmd.RequestID, a)
	if answered != nil {
		h.broadcast(ctx, conn, sessionID, ws.EventQuestionUpdate, cmd.RequestID, answered.Anonymous())
	}
}

func (h *WSHandler) handleLike(ctx context.Context, conn *ws.Conn, cmd ws.Command) {
	var req ws.LikeAnswerRequest
	if !h.decode(conn, cmd, &req) {
		return
	}
	sessionID, ok := h.requireRoom(ctx, conn, cmd.RequestID)
	if !ok {
		return
	}

	a, err := h.classroom.Like(ctx, sessionID, conn.UserID, req.AnswerID)
	if err != nil {
		h.replyErr(conn, cmd.RequestID, err)
		return
	}
	h.broadcast(ctx, conn, sessionID, ws.EventAnswerUpdate, cmd.RequestID, a)
}

// requireRoom returns the connection's session once membership is confirmed.
func (h *WSHandler) requireRoom(ctx context.Context, conn *ws.Conn, requestID string) (string, bool) {
	sessionID := conn.SessionID()
	if _, err := h.members.RequireMember(ctx, sessionID, conn.UserID, conn.UserType); err != nil {
		h.replyErr(conn, requestID, err)
		return "", false
	}
	return sessionID, true
}

func (h *WSHandler) decode(conn *ws.Conn, cmd ws.Command, dst any) bool {
	if len(cmd.Data) == 0 {
		h.replyCode(conn, cmd.RequestID, response.ErrInvalidPayload)
		return false
	}
	if err := json.Unmarshal(cmd.Data, dst); err != nil {
		h.replyCode(conn, cmd.RequestID, response.ErrInvalidPayload)
		return false
	}
	return true
}

func (h *WSHandler) broadcast(ctx context.Context, conn *ws.Conn, sessionID string, event ws.Event, requestID string, payload any) {
	msg, err := ws.NewMessage(event, requestID, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("Build broadcast failed")
		h.replyCode(conn, requestID, response.ErrInternal)
		return
	}
	if err := h.hub.Broadcast(ctx, sessionID, msg); err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Broadcast failed")
		h.replyCode(conn, requestID, response.ErrInternal)
	}
}

func (h *WSHandler) replyCode(conn *ws.Conn, requestID string, code response.ErrCode) {
	conn.ReplyError(requestID, string(code), response.GetMessage(code))
}

func (h *WSHandler) replyErr(conn *ws.Conn, requestID string, err error) {
	_, code, msg := classify(err)
	if code == response.ErrInternal {
		h.log.Error().Err(err).Str("user_id", conn.UserID).Msg("Command failed")
	}
	conn.ReplyError(requestID, string(code), msg)
}
