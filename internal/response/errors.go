package response

// ErrCode is a typed error code shared by REST envelopes and socket error events.
type ErrCode string

const (
	// ─── Tickets ───────────────────────────────────────────────────────
	ErrTicketRequired ErrCode = "TICKET_REQUIRED"
	ErrTicketInvalid  ErrCode = "TICKET_INVALID"
	ErrTicketExpired  ErrCode = "TICKET_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrProfessorOnly     ErrCode = "PROFESSOR_ONLY"
	ErrNotSessionOwner   ErrCode = "NOT_SESSION_OWNER"
	ErrProfessorMismatch ErrCode = "PROFESSOR_MISMATCH"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Classroom ─────────────────────────────────────────────────────
	ErrInvalidClassCode   ErrCode = "INVALID_CLASS_CODE"
	ErrCodeExhausted      ErrCode = "CLASS_CODE_EXHAUSTED"
	ErrSessionNotActive   ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionNotJoined   ErrCode = "SESSION_NOT_JOINED"
	ErrSessionNotClosed   ErrCode = "SESSION_NOT_CLOSED"
	ErrAlreadyLiked       ErrCode = "ALREADY_LIKED"
	ErrQuestionNotInScope ErrCode = "QUESTION_NOT_IN_SESSION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Tickets ───────────────────────────────────────────────────────
	case ErrTicketRequired:
		return "A participant ticket is required."
	case ErrTicketInvalid:
		return "The participant ticket is invalid."
	case ErrTicketExpired:
		return "The participant ticket has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrProfessorOnly:
		return "This action is limited to professors."
	case ErrNotSessionOwner:
		return "You do not own this class session."
	case ErrProfessorMismatch:
		return "The professor id does not match your ticket."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Classroom ─────────────────────────────────────────────────────
	case ErrInvalidClassCode:
		return "Invalid class code."
	case ErrCodeExhausted:
		return "Could not allocate a class code. Please try again."
	case ErrSessionNotActive:
		return "This class session is no longer active."
	case ErrSessionNotJoined:
		return "Join a class session first."
	case ErrSessionNotClosed:
		return "Only closed sessions can be archived."
	case ErrAlreadyLiked:
		return "You already liked this answer."
	case ErrQuestionNotInScope:
		return "The question does not belong to this session."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
