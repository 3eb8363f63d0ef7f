package domain

import (
	"errors"
	"fmt"
)

// Error types for local (non-network) failures. Failures reported by the
// conversion service are classified separately by package apierr.
type ErrorType string

const (
	ErrorTypeRejected ErrorType = "rejected"
	ErrorTypeOptions  ErrorType = "options"
	ErrorTypeState    ErrorType = "state"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeIO       ErrorType = "io"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func RejectionError(message string) *DomainError {
	return NewError(ErrorTypeRejected, message, nil)
}

func OptionsError(message string) *DomainError {
	return NewError(ErrorTypeOptions, message, nil)
}

func StateError(message string, err error) *DomainError {
	return NewError(ErrorTypeState, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// Orchestrator state violations.
var (
	ErrNotReady           = errors.New("no accepted file to submit")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrNothingToDownload  = errors.New("no successful conversion to download")
	ErrDownloadInFlight   = errors.New("a download is already in flight")
	ErrSuperseded         = errors.New("submission superseded by reset")
)

// IsType reports whether err is a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == errType
	}
	return false
}

// UserMessage returns the human-facing part of err: the bare message for
// domain errors, err.Error() otherwise.
func UserMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
