package livedto

import "errors"

// Error codes shared between the server API and clients.
const (
	CodeNotFound          = "not_found"
	CodeForbidden         = "forbidden"
	CodeInvalidMove       = "invalid_move"
	CodePromotionRequired = "promotion_required"
	CodeConflict          = "conflict"
	CodeInvalidState      = "invalid_state"
	CodeParseError        = "parse_error"
	CodeUnavailable       = "unavailable"
)

// DomainError is the typed failure surfaced by game operations.
type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "game service error"
}

func NewDomainError(code, message string, retryable bool) *DomainError {
	return &DomainError{Code: code, Message: message, Retryable: retryable}
}

// AsDomain unwraps err into a DomainError when possible.
func AsDomain(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the domain code of err, or empty for plain errors.
func CodeOf(err error) string {
	if de, ok := AsDomain(err); ok {
		return de.Code
	}
	return ""
}
