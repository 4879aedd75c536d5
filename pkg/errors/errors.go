package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data or the current state
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeForbidden indicates the caller's role may not perform the action
	ErrorTypeForbidden ErrorType = "FORBIDDEN"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeGenerationFailed indicates no unique identifier could be produced
	ErrorTypeGenerationFailed ErrorType = "GENERATION_FAILED"
)

// Machine-readable codes carried alongside the error type.
const (
	CodePatientNotFound      = "PATIENT_NOT_FOUND"
	CodeEntryNotFound        = "ENTRY_NOT_FOUND"
	CodeLabRequestNotFound   = "LAB_REQUEST_NOT_FOUND"
	CodeServerNotFound       = "SERVER_NOT_FOUND"
	CodeNoActiveEntry        = "NO_ACTIVE_ENTRY"
	CodeDuplicateActiveEntry = "DUPLICATE_ACTIVE_ENTRY"
	CodeServerBusy           = "SERVER_BUSY"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeQueueNumberTaken     = "QUEUE_NUMBER_TAKEN"
	CodeCardNumberTaken      = "CARD_NUMBER_TAKEN"
	CodeGenerationFailed     = "GENERATION_FAILED"
	CodeRoleRequired         = "ROLE_REQUIRED"
	CodeDispatchContended    = "DISPATCH_CONTENDED"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCode sets the machine-readable code and returns the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail attaches a context value the caller can react to
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    string(ErrorTypeNotFound),
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    string(ErrorTypeValidation),
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    string(ErrorTypeConflict),
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    string(ErrorTypeUnauthorized),
		Message: message,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeRoleRequired,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    string(ErrorTypeInternal),
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Code:    string(ErrorTypeExternal),
		Message: message,
		Err:     err,
	}
}

// NewGenerationFailedError creates an error for an exhausted or failed identifier generation
func NewGenerationFailedError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeGenerationFailed,
		Code:    CodeGenerationFailed,
		Message: message,
		Err:     err,
	}
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// HasCode reports whether err carries an AppError with the given code
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
