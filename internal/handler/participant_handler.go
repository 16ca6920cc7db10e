package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/response"
	"github.com/stemsi/classqa/internal/validator"
)

// Participants registers classroom participants.
type Participants interface {
	Create(ctx context.Context, req model.CreateParticipantRequest) (*model.User, error)
}

// TicketIssuer signs participant tickets.
type TicketIssuer interface {
	Issue(u *model.User) (string, error)
}

// ParticipantHandler hands out identities and tickets.
type ParticipantHandler struct {
	users   Participants
	tickets TicketIssuer
	log     zerolog.Logger
}

// NewParticipantHandler creates a new ParticipantHandler.
func NewParticipantHandler(users Participants, tickets TicketIssuer, log zerolog.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		users:   users,
		tickets: tickets,
		log:     log.With().Str("component", "participant_handler").Logger(),
	}
}

// Create godoc
// POST /api/v1/participants
// Registers a student or professor and returns a ticket for the socket.
func (h *ParticipantHandler) Create(c *gin.Context) {
	var req model.CreateParticipantRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	u, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Create participant failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	ticket, err := h.tickets.Issue(u)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", u.ID).Msg("Issue ticket failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, model.ParticipantResponse{User: *u, Ticket: ticket})
}
