package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Store errors
var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrInvalidCollection = errors.New("invalid collection name")
)

// Kind classifies an engine failure. Every engine call resolves to exactly
// one terminal kind; the HTTP layer maps kinds to status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindInvalidCredentials
	KindForbidden
	KindWrongProvider
	KindWrongMethod
	KindConflict
)

// Error is the engine's typed failure. Message is safe to surface to callers;
// Err carries the underlying cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code for the error kind.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden, KindWrongProvider, KindWrongMethod:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the Kind from err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// InvalidInput reports malformed, missing, or disallowed input. Unknown
// record ids are folded into this kind where the engine contract says so.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// InvalidCredentials is the single generic authentication failure. The same
// value is returned for unknown emails and wrong passwords so callers cannot
// probe for account existence.
func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
}

// Forbidden reports an operation not permitted for the account's auth mode.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// WrongProvider tells the caller which identity provider owns the account.
func WrongProvider(provider string) *Error {
	return &Error{Kind: KindWrongProvider, Message: fmt.Sprintf("account is managed by %s; sign in with that provider", provider)}
}

// WrongMethod tells the caller the account uses password authentication.
func WrongMethod() *Error {
	return &Error{Kind: KindWrongMethod, Message: "account was registered with a password; sign in with your password"}
}

// Conflict reports a duplicate-email registration attempt.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps I/O, hashing, or notification failures.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}
