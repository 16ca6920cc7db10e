package model

// Answer is a student's answer. The link to a question is denormalized and optional.
type Answer struct {
	ID               string   `json:"id"`
	SessionID        string   `json:"sessionId,omitempty"`
	Text             string   `json:"text"`
	Timestamp        int64    `json:"timestamp"`
	StudentID        string   `json:"studentId"`
	QuestionText     string   `json:"questionText,omitempty"`
	ActiveQuestionID string   `json:"activeQuestionId,omitempty"`
	Likes            int      `json:"likes,omitempty"`
	LikedBy          []string `json:"likedBy,omitempty"`
}
