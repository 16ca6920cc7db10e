package model

import "time"

// SessionStatus enumerates class session states.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusClosed   SessionStatus = "closed"
	SessionStatusArchived SessionStatus = "archived"
)

// ClassSession is one live run of a class. Code is the human-facing join token.
type ClassSession struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	ClassName   string        `json:"className"`
	ProfessorID string        `json:"professorId"`
	Status      SessionStatus `json:"status"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     *time.Time    `json:"endTime,omitempty"`
}

// SessionUpdate is the session-update event payload.
type SessionUpdate struct {
	SessionID   string        `json:"sessionId,omitempty"`
	Code        string        `json:"code,omitempty"`
	ClassName   string        `json:"className,omitempty"`
	Status      SessionStatus `json:"status,omitempty"`
	Students    []string      `json:"students"`
	ProfessorID string        `json:"professorId"`
}

// NewSessionUpdate builds the broadcast snapshot for a session.
func NewSessionUpdate(s *ClassSession, students []string) SessionUpdate {
	if students == nil {
		students = []string{}
	}
	return SessionUpdate{
		SessionID:   s.ID,
		Code:        s.Code,
		ClassName:   s.ClassName,
		Status:      s.Status,
		Students:    students,
		ProfessorID: s.ProfessorID,
	}
}
