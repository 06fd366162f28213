package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrProctorOnly     ErrCode = "PROCTOR_ACCESS_ONLY"
	ErrNotSessionOwner ErrCode = "NOT_SESSION_OWNER"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"

	// Exam attempt
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrSessionFinalized   ErrCode = "SESSION_FINALIZED"
	ErrSessionBlocked     ErrCode = "SESSION_BLOCKED"
	ErrPauseNotAllowed    ErrCode = "PAUSE_NOT_ALLOWED"
	ErrResetNotAllowed    ErrCode = "RESET_NOT_ALLOWED"
	ErrNoQuestions        ErrCode = "NO_QUESTIONS"
	ErrQuestionNotFound   ErrCode = "QUESTION_NOT_FOUND"
	ErrInvalidAnswer      ErrCode = "INVALID_ANSWER"
	ErrNoFlaggedQuestions ErrCode = "NO_FLAGGED_QUESTIONS"

	// Rate Limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrTokenRequired: "Authentication token is required.",
	ErrTokenInvalid:  "Authentication token is invalid.",
	ErrTokenExpired:  "Authentication token has expired.",

	ErrForbidden:       "You do not have permission to access this resource.",
	ErrProctorOnly:     "This resource is restricted to proctors.",
	ErrNotSessionOwner: "This exam attempt belongs to another user.",

	ErrValidation:     "Validation failed. Please check your input.",
	ErrInvalidID:      "Invalid ID format.",
	ErrInvalidPayload: "Invalid request payload.",

	ErrNotFound: "Resource not found.",

	ErrSessionNotFound:    "Exam attempt not found or already closed.",
	ErrSessionFinalized:   "This exam attempt has already been submitted.",
	ErrSessionBlocked:     "This exam attempt is blocked after too many violations.",
	ErrPauseNotAllowed:    "Challenge mode cannot be paused.",
	ErrResetNotAllowed:    "Violations can only be reset before answering.",
	ErrNoQuestions:        "No questions are available for this level.",
	ErrQuestionNotFound:   "Question does not exist in this exam.",
	ErrInvalidAnswer:      "Answer must be one of A, B, C or D.",
	ErrNoFlaggedQuestions: "No questions are flagged for review.",

	ErrRateLimitExceeded: "Too many requests. Please try again later.",

	ErrInternal: "Internal server error.",
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "An unexpected error occurred."
}
