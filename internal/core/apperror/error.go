// Package apperror provides structured error handling for the stock engine.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by the failure class they represent
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400) - malformed input, rejected before any mutation
	CodeValidation = "VALIDATION_ERROR"

	// Domain rule violations (422)
	CodeInvalidState        = "INVALID_DOCUMENT_STATE"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeInsufficientReserve = "INSUFFICIENT_RESERVED"
	CodeInsufficientBlocked = "INSUFFICIENT_BLOCKED"

	// Concurrency conflicts (409) - transient, safe to retry
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the engine.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInvalidState creates a document state error (422).
// Raised when an operation is attempted in a state that does not allow it.
func NewInvalidState(documentType, current, operation string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("%s cannot be %s in state %q", documentType, operation, current),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"document_type": documentType,
			"status":        current,
			"operation":     operation,
		},
	}
}

// NewInsufficientStock creates a stock shortage error with the shortfall amount.
func NewInsufficientStock(stockItemID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient available stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"stock_item_id": stockItemID,
			"requested":     requested,
			"available":     available,
			"shortfall":     requested - available,
		},
	}
}

// NewInsufficientReserved is returned when releasing or consuming more than is reserved.
func NewInsufficientReserved(stockItemID string, requested, reserved float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientReserve,
		Message:    "Insufficient reserved stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"stock_item_id": stockItemID,
			"requested":     requested,
			"reserved":      reserved,
			"shortfall":     requested - reserved,
		},
	}
}

// NewInsufficientBlocked is returned when unblocking more than is blocked.
func NewInsufficientBlocked(stockItemID string, requested, blocked float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientBlocked,
		Message:    "Insufficient blocked stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"stock_item_id": stockItemID,
			"requested":     requested,
			"blocked":       blocked,
			"shortfall":     requested - blocked,
		},
	}
}

// NewConcurrentModification creates an optimistic locking error.
// The posting retry loop treats this code as transient.
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified concurrently. Please retry.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeConcurrentModification
	}
	return false
}

// IsDuplicate checks if error is CodeDuplicate
func IsDuplicate(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeDuplicate
	}
	return false
}

// IsInvalidState checks if error is CodeInvalidState
func IsInvalidState(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeInvalidState
	}
	return false
}

// IsCapacity reports whether the error is any of the insufficient-quantity codes.
func IsCapacity(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeInsufficientStock, CodeInsufficientReserve, CodeInsufficientBlocked:
		return true
	}
	return false
}
