// Package apperror defines the coded error taxonomy shared by the identity core.
//
// Codes are grouped by category: 1xxx authentication, 3xxx authorization and
// not-found, 4xxx validation and policy.
package apperror

import (
	"errors"
	"fmt"
)

const (
	CodeInvalidCredentials = 1001
	CodeEmailNotVerified   = 1002
	CodeMFARequired        = 1003
	CodeMFAInvalid         = 1004
	CodeSessionInvalid     = 1005

	CodePermissionDenied = 3001
	CodeNotFound         = 3002

	CodeValidation         = 4001
	CodeEmailTaken         = 4002
	CodeDomainNotAllowed   = 4003
	CodeSeatLimitReached   = 4004
	CodeInvitationExpired  = 4005
	CodeInvitationAccepted = 4006
	CodeLastAdmin          = 4007
	CodeMFAState           = 4008
)

// Error is the tagged error type carried across the identity core boundary.
type Error struct {
	Code    int
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// New builds a coded error without details.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// coded aliases Error so specializations can embed it without the field name
// shadowing the promoted Error() method.
type coded = Error

// PermissionError is the authorization-denied specialization. Details carry
// the denied subject and request for audit and debugging.
type PermissionError struct {
	coded
}

// NewPermission builds a PermissionError describing the denied check.
func NewPermission(userID, role, resource, action string) *PermissionError {
	return &PermissionError{coded: Error{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("permission denied: %s on %s", action, resource),
		Details: map[string]any{
			"user_id":  userID,
			"role":     role,
			"resource": resource,
			"action":   action,
		},
	}}
}

// ValidationError is the generic validation specialization.
type ValidationError struct {
	coded
}

// NewValidation builds a ValidationError with an explicit code, which lets
// policy failures (domain, seat limit, last admin) keep distinct codes while
// sharing the validation kind.
func NewValidation(code int, message string) *ValidationError {
	return &ValidationError{coded: Error{Code: code, Message: message}}
}

// CodeOf extracts the numeric code from any error produced by this package.
// Unknown errors report zero.
func CodeOf(err error) int {
	var pe *PermissionError
	if errors.As(err, &pe) {
		return pe.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return 0
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code int) bool {
	return CodeOf(err) == code
}
