package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTicketService(secret string) *TicketService {
	return NewTicketService(&config.Config{TicketSecret: secret, TicketExpiry: time.Hour})
}

func TestTicketRoundTrip(t *testing.T) {
	svc := newTestTicketService("s3cret")
	u := &model.User{ID: "prof-1", Name: "Dr. Ada", Type: model.UserTypeProfessor}

	ticket, err := svc.Issue(u)
	require.NoError(t, err)

	claims, err := svc.Validate(ticket)
	require.NoError(t, err)
	assert.Equal(t, "prof-1", claims.UserID())
	assert.Equal(t, model.UserTypeProfessor, claims.UserType)
	assert.True(t, claims.IsProfessor())
	assert.Equal(t, "Dr. Ada", claims.Name)
}

func TestTicketExpired(t *testing.T) {
	svc := newTestTicketService("s3cret")
	issuedAt := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issuedAt }

	ticket, err := svc.Issue(&model.User{ID: "stu-1", Type: model.UserTypeStudent})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(ticket)
	assert.ErrorIs(t, err, ErrTicketExpired)
}

func TestTicketWrongSecret(t *testing.T) {
	ticket, err := newTestTicketService("one").Issue(&model.User{ID: "stu-1", Type: model.UserTypeStudent})
	require.NoError(t, err)

	_, err = newTestTicketService("two").Validate(ticket)
	assert.ErrorIs(t, err, ErrTicketInvalid)
}

func TestTicketRejectsUnsignedAndUnknownType(t *testing.T) {
	svc := newTestTicketService("s3cret")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "stu-1"},
		UserType:         model.UserTypeProfessor,
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Validate(raw)
	assert.ErrorIs(t, err, ErrTicketInvalid)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "stu-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserType:         "admin",
	})
	raw, err = forged.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = svc.Validate(raw)
	assert.ErrorIs(t, err, ErrTicketInvalid)
}
