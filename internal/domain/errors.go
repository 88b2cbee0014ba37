package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped sentinels still match with errors.Is.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of a sentinel DomainError carrying cause.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, cause)
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Configuration errors
var (
	ErrRegistryUnavailable = NewDomainError(ErrCodeUnavailable, "creator registry unavailable")
	ErrRulesUnavailable    = NewDomainError(ErrCodeUnavailable, "routing rules unavailable")
	ErrInvalidThresholds   = NewDomainError(ErrCodeValidation, "confidence thresholds must satisfy 0 <= reject < review < approve <= 100")
	ErrInvalidPriority     = NewDomainError(ErrCodeValidation, "invalid priority tier")
)

// Insight validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrScoreOutOfRange      = NewDomainError(ErrCodeValidation, "confidence score out of range")
	ErrEmptyKeyInsights     = NewDomainError(ErrCodeValidation, "key insights must not be empty")
)

// Routing errors
var (
	ErrInvalidAgentAddress = NewDomainError(ErrCodeValidation, "invalid agent address")
	ErrParentNotFound      = NewDomainError(ErrCodeNotFound, "parent agent directory not found")
)

// Operation errors
var (
	ErrCycleInProgress = NewDomainError(ErrCodeConflict, "scan cycle already in progress")
)
