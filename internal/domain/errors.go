package domain

import (
	"errors"
	"fmt"
)

// Failure kinds detected inside the pipeline. Components wrap them with
// fmt.Errorf("...: %w") and callers match them with errors.Is.
var (
	// ErrDecode indicates a malformed or undecodable image payload
	ErrDecode = errors.New("image decode failed")

	// ErrShape indicates a tensor that violates the classifier input contract
	ErrShape = errors.New("tensor shape mismatch")

	// ErrModelUnavailable indicates that classifier parameters are not loaded
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrCorpusMissing indicates an absent or malformed training/evaluation corpus
	ErrCorpusMissing = errors.New("corpus missing")

	// ErrGenerationUnavailable indicates that the text-generation collaborator failed
	ErrGenerationUnavailable = errors.New("text generation unavailable")
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrStoreUnavailable = &AppError{
		Code:       "STORE_UNAVAILABLE",
		Message:    "Analysis store is not configured",
		StatusCode: 503,
	}
)
