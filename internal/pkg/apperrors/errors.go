// Package apperrors provides the FormBridge error taxonomy and its two wire
// carrier shapes: an envelope for the HTTP boundary and a flat shape for the
// tool-protocol boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is a discriminated error kind shared by both carrier shapes.
type Type string

const (
	TypeNotFound Type = "not_found"
	TypeInvalidRequest Type = "invalid_request"
	TypeInvalidResumeToken Type = "invalid_resume_token"
	TypeInvalid Type = "invalid"
	TypeConflict Type = "conflict"
	TypeNeedsApproval Type = "needs_approval"
	TypeExpired Type = "expired"
	TypeUnauthorized Type = "unauthorized"
	TypeForbidden Type = "forbidden"
	TypeRateLimited Type = "rate_limited"
	TypeStorageError Type = "storage_error"
	TypeInternal Type = "internal_error"
)

var httpStatus = map[Type]int{
	TypeNotFound: http.StatusNotFound,
	TypeInvalidRequest: http.StatusBadRequest,
	TypeInvalidResumeToken: http.StatusConflict,
	TypeInvalid: http.StatusBadRequest,
	TypeConflict: http.StatusConflict,
	TypeNeedsApproval: http.StatusOK,
	TypeExpired: http.StatusGone,
	TypeUnauthorized: http.StatusUnauthorized,
	TypeForbidden: http.StatusForbidden,
	TypeRateLimited: http.StatusTooManyRequests,
	TypeStorageError: http.StatusInternalServerError,
	TypeInternal: http.StatusInternalServerError,
}

// FieldError names one violated constraint on one field path.
type FieldError struct {
	Field string `json:"field"`
	Message string `json:"message"`
	Type string `json:"type"`
}

// NextAction suggests one concrete recovery the caller can take.
type NextAction struct {
	Type string `json:"type"`
	Description string `json:"description"`
}

// AppError is the single internal error representation; the envelope and
// flat JSON shapes are just two renderings of the same value.
type AppError struct {
	Code Type
	Message string
	Retryable bool
	RetryAfterMs int64
	Fields []FieldError
	NextActions []NextAction
	Err error

	// SubmissionID, State and ResumeToken are echoed back into the envelope
	// shape when known, so a failed call still tells the caller where things
	// stand.
	SubmissionID string
	State string
	ResumeToken string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus maps the error's Code to the status code fixed by
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New constructs an AppError of the given type.
func New(code Type, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap constructs an AppError of the given type around an underlying cause.
func Wrap(code Type, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// WithFields attaches per-field validation errors.
func (e *AppError) WithFields(fields []FieldError) *AppError {
	e.Fields = fields
	return e
}

// WithNextActions attaches recovery suggestions.
func (e *AppError) WithNextActions(actions ...NextAction) *AppError {
	e.NextActions = actions
	return e
}

// WithRetry marks the error retryable, optionally with a minimum backoff.
func (e *AppError) WithRetry(retryAfterMs int64) *AppError {
	e.Retryable = true
	e.RetryAfterMs = retryAfterMs
	return e
}

// Convenience constructors, one per taxonomy entry.

func NotFound(message string) *AppError {
	return New(TypeNotFound, message).WithNextActions(NextAction{Type: "create", Description: "Create a new submission"})
}

func InvalidRequest(message string) *AppError {
	return New(TypeInvalidRequest, message)
}

func InvalidResumeToken(message string) *AppError {
	return New(TypeInvalidResumeToken, message).WithNextActions(
		NextAction{Type: "resume", Description: "Request a fresh resume link"},
	)
}

func Invalid(message string, fields []FieldError) *AppError {
	return New(TypeInvalid, message).WithFields(fields).WithNextActions(
		NextAction{Type: "validate", Description: "Use a valid field name from the intake schema"},
	)
}

func Conflict(message string) *AppError {
	return New(TypeConflict, message)
}

func NeedsApproval(message string) *AppError {
	return New(TypeNeedsApproval, message)
}

func Expired(message string) *AppError {
	return New(TypeExpired, message).WithNextActions(NextAction{Type: "create", Description: "Create a new submission"})
}

func Unauthorized(message string) *AppError {
	return New(TypeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(TypeForbidden, message)
}

func RateLimited(message string, retryAfterMs int64) *AppError {
	return New(TypeRateLimited, message).WithRetry(retryAfterMs)
}

func StorageError(err error) *AppError {
	return Wrap(TypeStorageError, "storage operation failed", err).WithRetry(0)
}

func Internal(err error) *AppError {
	return Wrap(TypeInternal, "internal error", err).WithRetry(0)
}

// As extracts an *AppError from err, following the standard Unwrap chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
