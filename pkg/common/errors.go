package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrInternalServer   = errors.New("internal server error")
	ErrConflict         = errors.New("resource conflict")
	ErrValidation       = errors.New("validation error")
	ErrOutOfServiceArea = errors.New("location outside service area")
	ErrQuoteExpired     = errors.New("quote expired")
	ErrQuoteLocked      = errors.New("quote locked")
	ErrPolicyViolation  = errors.New("policy violation")
	ErrRuleConfig       = errors.New("invalid rule configuration")
)

// Stable machine-readable error codes returned in API responses.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeOutOfServiceArea = "OUT_OF_SERVICE_AREA"
	CodeQuoteExpired     = "QUOTE_EXPIRED"
	CodeQuoteLocked      = "QUOTE_LOCKED"
	CodePolicyViolation  = "POLICY_VIOLATION"
	CodeRuleConfig       = "RULE_CONFIG_INVALID"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface. The specific message wins over the
// wrapped sentinel, which stays reachable through Unwrap for errors.Is.
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap exposes the wrapped sentinel for errors.Is checks
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors

func NewNotFoundError(message string, err error) *AppError {
	if err == nil {
		err = ErrNotFound
	}
	return &AppError{
		Code:      http.StatusNotFound,
		ErrorCode: CodeNotFound,
		Message:   message,
		Err:       err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Message: message,
		Err:     ErrUnauthorized,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Message: message,
		Err:     ErrForbidden,
	}
}

func NewBadRequestError(message string, err error) *AppError {
	if err == nil {
		err = ErrBadRequest
	}
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternalError(message string, err error) *AppError {
	if err == nil {
		err = ErrInternalServer
	}
	return &AppError{
		Code:      http.StatusInternalServerError,
		ErrorCode: CodeInternal,
		Message:   message,
		Err:       err,
	}
}

func NewInternalServerError(message string) *AppError {
	return NewInternalError(message, nil)
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeConflict,
		Message:   message,
		Err:       ErrConflict,
	}
}

// NewValidationError flags a malformed or incomplete trip request (caller's fault).
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeValidation,
		Message:   message,
		Err:       ErrValidation,
	}
}

// NewOutOfServiceAreaError flags a trip endpoint beyond the configured service radius.
func NewOutOfServiceAreaError(message string) *AppError {
	return &AppError{
		Code:      http.StatusUnprocessableEntity,
		ErrorCode: CodeOutOfServiceArea,
		Message:   message,
		Err:       ErrOutOfServiceArea,
	}
}

// NewQuoteExpiredError flags a read of a quote past its validity deadline.
func NewQuoteExpiredError(message string) *AppError {
	return &AppError{
		Code:      http.StatusGone,
		ErrorCode: CodeQuoteExpired,
		Message:   message,
		Err:       ErrQuoteExpired,
	}
}

// NewQuoteLockedError flags a mutation attempt on a quote already consumed by a booking.
func NewQuoteLockedError(message string) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeQuoteLocked,
		Message:   message,
		Err:       ErrQuoteLocked,
	}
}

// NewPolicyViolationError flags a modify/cancel attempted outside its allowed window.
func NewPolicyViolationError(message string) *AppError {
	return &AppError{
		Code:      http.StatusUnprocessableEntity,
		ErrorCode: CodePolicyViolation,
		Message:   message,
		Err:       ErrPolicyViolation,
	}
}

// NewRuleConfigError flags a structurally invalid pricing rule at save time,
// so evaluation never has to handle malformed rules.
func NewRuleConfigError(message string) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeRuleConfig,
		Message:   message,
		Err:       ErrRuleConfig,
	}
}
