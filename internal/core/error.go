package core

// Error codes carried by rejected outcomes and HTTP error bodies
const (
	ErrMalformedCommand    = "MALFORMED_COMMAND"
	ErrNoActiveMatch       = "NO_ACTIVE_MATCH"
	ErrUnauthorizedNewGame = "UNAUTHORIZED_NEW_GAME"
	ErrSelfTargetingMove   = "SELF_TARGETING_MOVE"
	ErrConsecutiveMove     = "CONSECUTIVE_MOVE"
	ErrIllegalMove         = "ILLEGAL_MOVE"
	ErrInvalidPosition     = "INVALID_POSITION"
	ErrInternalError       = "INTERNAL_ERROR"
	ErrInvalidRequest      = "INVALID_REQUEST"
	ErrUnauthorized        = "UNAUTHORIZED"
	ErrRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrInvalidContent      = "INVALID_CONTENT_TYPE"
	ErrBusy                = "INVOCATION_IN_PROGRESS"
	ErrNotFound            = "NOT_FOUND"
)

// ErrorResponse is the JSON error body returned by the webhook server
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
