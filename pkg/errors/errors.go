package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// TypeNotFound means every selector candidate was exhausted
	TypeNotFound ErrorType = "not_found"
	// TypeInvalidPrice means price text failed to parse or fell outside bounds
	TypeInvalidPrice ErrorType = "invalid_price"
	// TypeNavigation represents failed or timed out navigations
	TypeNavigation ErrorType = "navigation"
	// TypeStaleReference means a handle outlived the document it was taken from
	TypeStaleReference ErrorType = "stale_reference"
	// TypeEmptyResult means there is nothing to select from
	TypeEmptyResult ErrorType = "empty_result"
	// TypeCommit means the add-to-cart action could not be completed
	TypeCommit ErrorType = "commit"
	// TypeAuthentication represents login and secondary auth failures
	TypeAuthentication ErrorType = "authentication"
	// TypeRateLimit represents storefront rate limiting
	TypeRateLimit ErrorType = "rate_limit"
	// TypeConfiguration represents configuration errors
	TypeConfiguration ErrorType = "configuration"
)

// Sentinels for errors.Is comparisons against a type.
var (
	ErrNotFound       = &Error{Type: TypeNotFound}
	ErrInvalidPrice   = &Error{Type: TypeInvalidPrice}
	ErrNavigation     = &Error{Type: TypeNavigation}
	ErrStaleReference = &Error{Type: TypeStaleReference}
	ErrEmptyResult    = &Error{Type: TypeEmptyResult}
	ErrCommit         = &Error{Type: TypeCommit}
	ErrAuthentication = &Error{Type: TypeAuthentication}
	ErrRateLimit      = &Error{Type: TypeRateLimit}
	ErrConfiguration  = &Error{Type: TypeConfiguration}
)

// Error represents a typed menuscout error
type Error struct {
	Type    ErrorType
	Vendor  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *Error) Error() string {
	subject := e.Vendor
	if subject == "" {
		subject = "-"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, subject, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, subject, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// IsRecoverable returns true if the crawl can move on past the error
func (e *Error) IsRecoverable() bool {
	switch e.Type {
	case TypeEmptyResult, TypeConfiguration, TypeAuthentication:
		return false
	default:
		return true
	}
}

// IsType reports whether err wraps an *Error of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsFatal reports whether err wraps an *Error that is not recoverable.
// Untyped errors are left to the caller.
func IsFatal(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return !e.IsRecoverable()
}

// TypeOf returns the type of the first *Error in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !stderrors.As(err, &e) {
		return ""
	}
	return e.Type
}

// New creates a new Error
func New(errType ErrorType, vendor, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Vendor:  vendor,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNotFound creates a new not found error
func NewNotFound(message string) *Error {
	return New(TypeNotFound, "", message, nil)
}

// NewInvalidPrice creates a new invalid price error
func NewInvalidPrice(raw, message string, err error) *Error {
	return New(TypeInvalidPrice, "", fmt.Sprintf("%q: %s", raw, message), err)
}

// NewNavigation creates a new navigation error
func NewNavigation(vendor, message string, err error) *Error {
	return New(TypeNavigation, vendor, message, err)
}

// NewStaleReference creates a new stale reference error
func NewStaleReference(message string) *Error {
	return New(TypeStaleReference, "", message, nil)
}

// NewEmptyResult creates a new empty result error
func NewEmptyResult(message string) *Error {
	return New(TypeEmptyResult, "", message, nil)
}

// NewCommit creates a new commit error
func NewCommit(vendor, message string, err error) *Error {
	return New(TypeCommit, vendor, message, err)
}

// NewAuthentication creates a new authentication error
func NewAuthentication(message string, err error) *Error {
	return New(TypeAuthentication, "", message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(url string, duration time.Duration) *Error {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(TypeRateLimit, url, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *Error {
	return New(TypeConfiguration, "", message, err)
}
