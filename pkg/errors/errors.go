package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation or precondition error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConfiguration indicates missing or invalid configuration
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"

	// ErrorTypeUnauthorized indicates an authentication or credential error
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from an external provider
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// ErrorCode is a stable machine-readable code for a failure.
// The job layer and API surface key off these, never off message text.
type ErrorCode string

const (
	// Configuration
	CodeMissingCredentials ErrorCode = "missing_credentials"

	// Workflow preconditions
	CodeServiceNotEnabled ErrorCode = "service_not_enabled"
	CodeNoStaffMember     ErrorCode = "no_staff_member"
	CodeNoProvider        ErrorCode = "no_provider"
	CodeNoConnection      ErrorCode = "no_connection"

	// OAuth handshake
	CodeInvalidState        ErrorCode = "invalid_state"
	CodeExpiredState        ErrorCode = "expired_state"
	CodeAuthorizationFailed ErrorCode = "authorization_failed"
	CodeInvalidIDs          ErrorCode = "invalid_ids"

	// Token lifecycle
	CodeRefreshFailed ErrorCode = "refresh_failed"
	CodeAuthError     ErrorCode = "auth_error"

	// Provider API
	CodeCreateFailed ErrorCode = "create_failed"
	CodeDeleteFailed ErrorCode = "delete_failed"
	CodeGetFailed    ErrorCode = "get_failed"
	CodeAPIError     ErrorCode = "api_error"
	CodeParseError   ErrorCode = "parse_error"

	// Data integrity
	CodeInvalidMeetingData ErrorCode = "invalid_meeting_data"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error with a precondition code
func NewValidationError(code ErrorCode, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(code ErrorCode, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfiguration,
		Code:    code,
		Message: message,
	}
}

// NewUnauthorizedError creates a new credential error
func NewUnauthorizedError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external provider error
func NewExternalError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
