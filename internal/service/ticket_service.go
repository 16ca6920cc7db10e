package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/model"
)

// Ticket errors.
var (
	ErrTicketInvalid = errors.New("invalid ticket")
	ErrTicketExpired = errors.New("ticket expired")
)

// Claims is the participant ticket payload. Subject carries the user ID.
type Claims struct {
	jwt.RegisteredClaims
	UserType model.UserType `json:"userType"`
	Name     string         `json:"name,omitempty"`
}

// UserID returns the ticket's subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// IsProfessor reports whether the ticket belongs to a professor.
func (c *Claims) IsProfessor() bool {
	return c.UserType == model.UserTypeProfessor
}

// TicketService issues and validates participant tickets.
type TicketService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTicketService creates a new TicketService.
func NewTicketService(cfg *config.Config) *TicketService {
	return &TicketService{
		secret: []byte(cfg.TicketSecret),
		expiry: cfg.TicketExpiry,
		now:    time.Now,
	}
}

// Issue signs a ticket for u. The user type is fixed for the ticket's lifetime.
func (s *TicketService) Issue(u *model.User) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		UserType: u.Type,
		Name:     u.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign ticket: %w", err)
	}
	return signed, nil
}

// Validate parses a ticket and returns its claims.
func (s *TicketService) Validate(ticket string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(ticket, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTicketExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTicketInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || !claims.UserType.Valid() {
		return nil, ErrTicketInvalid
	}
	return claims, nil
}
