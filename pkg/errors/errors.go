package errors

import (
	"errors"
	"fmt"
)

// AppErrorType classifies a fatal, caller-visible failure. These map onto
// the analyzer's error taxonomy: a fatal kind aborts the run before any
// envelope is returned; there is no partial result alongside a fatal error.
type AppErrorType string

const (
	// MalformedInput: the OTEL payload cannot be classified as compact or
	// OTLP, or a required top-level field is missing.
	MalformedInput AppErrorType = "MALFORMED_INPUT"
	// EmptyInput: zero records survived normalization.
	EmptyInput AppErrorType = "EMPTY_INPUT"
	// ConfigurationInvalid: a configuration field is out of range or of the
	// wrong type.
	ConfigurationInvalid AppErrorType = "CONFIGURATION_INVALID"
	// InternalError: an unexpected failure outside the documented taxonomy
	// (e.g. a normalization failure that is neither malformed nor empty input).
	InternalError AppErrorType = "INTERNAL_ERROR"
)

// AppError is a fatal error carrying a stable type tag alongside the
// underlying cause, so callers can branch on Type without string matching.
type AppError struct {
	Err     error        `json:"-"`
	Type    AppErrorType `json:"type"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an AppError of the given type.
func NewAppError(errorType AppErrorType, message, details string, err error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Details: details,
		Err:     err,
	}
}

// NewMalformedInputError reports a payload that matches neither the compact
// nor the OTLP shape.
func NewMalformedInputError(message string) *AppError {
	return NewAppError(MalformedInput, message, "", nil)
}

// NewEmptyInputError reports zero records after normalization.
func NewEmptyInputError(message string) *AppError {
	return NewAppError(EmptyInput, message, "", nil)
}

// NewConfigurationInvalidError wraps a configuration validation failure.
func NewConfigurationInvalidError(message string, err error) *AppError {
	return NewAppError(ConfigurationInvalid, message, "", err)
}

// NewInternalError wraps an unexpected failure outside the core's documented
// failure taxonomy.
func NewInternalError(message string, err error) *AppError {
	return NewAppError(InternalError, message, "", err)
}

// IsAppError extracts an *AppError from err, if any, via errors.As.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorType returns the AppErrorType of err, or InternalError if err is
// not an *AppError.
func GetErrorType(err error) AppErrorType {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Type
	}
	return InternalError
}
