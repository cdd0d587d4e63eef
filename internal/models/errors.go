package models

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across the repository and service layers.
var (
	// ErrMissingMerchant is a programming error: a merchant-scoped
	// repository method was called without a merchant id.
	ErrMissingMerchant = errors.New("merchant id is required")

	// ErrDuplicate surfaces unique-constraint violations.
	ErrDuplicate = errors.New("duplicate record")

	// ErrImmutableInvoice rejects edits to invoices at dp_paid or beyond.
	ErrImmutableInvoice = errors.New("invoice can no longer be edited")

	// ErrInvalidTransition rejects state-machine violations.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// AppError is a user-visible error with an HTTP status. Services return
// AppError values for conditions the client caused; everything else is
// treated as internal.
type AppError struct {
	Code    string
	Message string
	Status  int
}

func (e *AppError) Error() string {
	return e.Message
}

// Constructors for the client-caused error kinds.

func NewValidationError(message string) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Message: message, Status: http.StatusBadRequest}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: message, Status: http.StatusForbidden}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: resource + " not found", Status: http.StatusNotFound}
}

func NewConflictError(message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, Status: http.StatusConflict}
}

func NewUpstreamError(service string) *AppError {
	return &AppError{Code: "UPSTREAM_FAILED", Message: service + " request failed", Status: http.StatusBadGateway}
}

// HTTPStatus maps any error to a response status. AppError carries its
// own status; sentinels map per the error table; the rest is a 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	switch {
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrImmutableInvoice), errors.Is(err, ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
