package deviations

import "errors"

// Sentinel errors for the two fatal kinds the pipeline itself can raise.
// Both are wrapped into a *pkg/errors.AppError by the services layer before
// reaching a caller; they exist here so internal callers can match them
// with errors.Is without importing pkg/errors.
var (
	// ErrMalformedInput is returned when the payload cannot be classified
	// as compact or OTLP, or a required top-level field is missing.
	ErrMalformedInput = errors.New("payload cannot be classified as compact or OTLP")

	// ErrEmptyInput is returned when zero records survive normalization.
	ErrEmptyInput = errors.New("zero records after normalization")
)
