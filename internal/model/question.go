package model

// QuestionStatus tracks whether a question has received an answer.
type QuestionStatus string

const (
	QuestionStatusUnanswered QuestionStatus = "unanswered"
	QuestionStatusAnswered   QuestionStatus = "answered"
)

// Question is an anonymous student question. Timestamp is unix milliseconds.
type Question struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Text      string         `json:"text"`
	Timestamp int64          `json:"timestamp"`
	StudentID string         `json:"studentId,omitempty"`
	Status    QuestionStatus `json:"status"`
}

// Anonymous returns a copy safe to broadcast to the room.
func (q Question) Anonymous() Question {
	q.StudentID = ""
	return q
}
