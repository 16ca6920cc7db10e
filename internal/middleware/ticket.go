package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/classqa/internal/response"
	"github.com/stemsi/classqa/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for ticket claims.
	ContextKeyClaims = "claims"
)

// TicketValidator validates participant tickets.
type TicketValidator interface {
	Validate(ticket string) (*service.Claims, error)
}

// RequireTicket validates a participant ticket from the Authorization
// header, falling back to the ?ticket= query parameter for WebSocket
// upgrades, which cannot carry custom headers from browsers.
func RequireTicket(tickets TicketValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractTicket(c)
		if raw == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTicketRequired)
			return
		}

		claims, err := tickets.Validate(raw)
		if err != nil {
			code := response.ErrTicketInvalid
			if errors.Is(err, service.ErrTicketExpired) {
				code = response.ErrTicketExpired
			}
			response.AbortFail(c, http.StatusUnauthorized, code)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireProfessor rejects tickets that do not belong to a professor.
// Must run after RequireTicket.
func RequireProfessor() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !claims.IsProfessor() {
			response.AbortFail(c, http.StatusForbidden, response.ErrProfessorOnly)
			return
		}
		c.Next()
	}
}

// GetClaims retrieves the ticket claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func extractTicket(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("ticket")
}
