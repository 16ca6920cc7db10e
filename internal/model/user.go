package model

import "time"

// UserType distinguishes the two participant roles.
type UserType string

const (
	UserTypeStudent   UserType = "student"
	UserTypeProfessor UserType = "professor"
)

// Valid reports whether t is one of the known participant roles.
func (t UserType) Valid() bool {
	return t == UserTypeStudent || t == UserTypeProfessor
}

// User is a classroom participant. There is no credential; the role is
// fixed when the participant is created.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Type      UserType  `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateParticipantRequest is the payload for registering a participant.
type CreateParticipantRequest struct {
	Name  string   `json:"name" binding:"required,notblank,max=100"`
	Email string   `json:"email" binding:"omitempty,email,max=254"`
	Type  UserType `json:"type" binding:"required,oneof=student professor"`
}

// ParticipantResponse is returned after a participant is registered.
type ParticipantResponse struct {
	User   User   `json:"user"`
	Ticket string `json:"ticket"`
}
