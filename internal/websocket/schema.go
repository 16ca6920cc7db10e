package websocket

import (
	"encoding/json"

	"github.com/stemsi/classqa/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionGenerateClassCode Action = "generate-class-code"
	ActionValidateClassCode Action = "validate-class-code"
	ActionSendQuestion      Action = "send-question"
	ActionSendAnswer        Action = "send-answer"
	ActionJoinSession       Action = "join-session"
	ActionLikeAnswer        Action = "like-answer"
	ActionPing              Action = "ping"
)

// Command is the client → server envelope. RequestID is echoed back on the
// direct reply so the sender can correlate it.
type Command struct {
	Action    Action          `json:"action"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// GenerateClassCodeRequest opens a new class session.
type GenerateClassCodeRequest struct {
	ProfessorID string `json:"professorId"`
	ClassName   string `json:"className"`
}

// ValidateClassCodeRequest checks a human-entered code.
type ValidateClassCodeRequest struct {
	Code string `json:"code"`
}

// SendQuestionRequest carries a new question. Only Text is honoured.
type SendQuestionRequest struct {
	Question model.Question `json:"question"`
}

// SendAnswerRequest carries a new answer. ID, timestamp and author are assigned server-side.
type SendAnswerRequest struct {
	Answer model.Answer `json:"answer"`
}

// JoinSessionRequest attaches the connection to a session room.
type JoinSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// LikeAnswerRequest records the caller's like on an answer.
type LikeAnswerRequest struct {
	AnswerID string `json:"answerId"`
}

// NewCommand builds a command envelope around payload (which may be nil).
func NewCommand(action Action, requestID string, payload any) (Command, error) {
	cmd := Command{Action: action, RequestID: requestID}
	if payload == nil {
		return cmd, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, err
	}
	cmd.Data = data
	return cmd, nil
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventQuestionUpdate     Event = "question-update"
	EventAnswerUpdate       Event = "answer-update"
	EventSessionUpdate      Event = "session-update"
	EventClassCodeGenerated Event = "class-code-generated"
	EventClassCodeValidated Event = "class-code-validated"
	EventError              Event = "error"
	EventPong               Event = "pong"
)

// Message is the server → client envelope.
type Message struct {
	Event     Event           `json:"event"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClassCodeGenerated is the class-code-generated payload.
type ClassCodeGenerated struct {
	Code      string `json:"code"`
	ClassName string `json:"className"`
	SessionID string `json:"sessionId,omitempty"`
}

// ClassCodeValidated is the class-code-validated payload.
type ClassCodeValidated struct {
	IsValid   bool   `json:"isValid"`
	ClassName string `json:"className,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ErrorPayload is the error event payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage builds an event envelope around payload (which may be nil).
func NewMessage(event Event, requestID string, payload any) (Message, error) {
	msg := Message{Event: event, RequestID: requestID}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Data = data
	return msg, nil
}
