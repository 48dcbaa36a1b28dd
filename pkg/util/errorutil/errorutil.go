package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers. Eligibility and validation codes are
// recoverable and safe to render to end users.
const (
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeNotFound                = "NOT_FOUND"
	CodeTicketNotFound          = "TICKET_NOT_FOUND"
	CodeCategoryNotFound        = "CATEGORY_NOT_FOUND"
	CodeCooldownActive          = "COOLDOWN_ACTIVE"
	CodeTooManyOpenTickets      = "TOO_MANY_OPEN_TICKETS"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodePersistenceFailure      = "PERSISTENCE_FAILURE"
	CodeExternalPlatformFailure = "EXTERNAL_PLATFORM_FAILURE"
	CodeInternal                = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewTicketNotFound(ticketID string) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound, map[string]any{"ticket_id": ticketID})
}

func NewCategoryNotFound(categoryKey string) error {
	return NewDomainError(CodeCategoryNotFound, "category not found", http.StatusNotFound, map[string]any{"category": categoryKey})
}

// NewCooldownActive reports the remaining wait, rounded up to whole minutes.
func NewCooldownActive(remainingMinutes int) error {
	return NewDomainError(CodeCooldownActive,
		fmt.Sprintf("please wait %d minute(s) before opening another ticket", remainingMinutes),
		http.StatusTooManyRequests,
		map[string]any{"remaining_minutes": remainingMinutes})
}

func NewTooManyOpenTickets(max int) error {
	return NewDomainError(CodeTooManyOpenTickets,
		fmt.Sprintf("you already have %d open tickets", max),
		http.StatusConflict,
		map[string]any{"max": max})
}

func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition, "invalid status transition", http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewPersistenceFailure wraps a store error. The message never carries the
// underlying error text.
func NewPersistenceFailure(err error) error {
	return &DomainError{
		Code:       CodePersistenceFailure,
		Message:    "a storage error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewExternalPlatformFailure wraps a chat platform error.
func NewExternalPlatformFailure(err error) error {
	return &DomainError{
		Code:       CodeExternalPlatformFailure,
		Message:    "the chat platform request failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
