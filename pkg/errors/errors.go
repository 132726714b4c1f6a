package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies broadcast failures so callers can react without
// string-matching messages.
type ErrorCode string

const (
	ErrCodePermissionDenied        ErrorCode = "PERMISSION_DENIED"
	ErrCodeDeviceNotFound          ErrorCode = "DEVICE_NOT_FOUND"
	ErrCodeDeviceBusy              ErrorCode = "DEVICE_BUSY"
	ErrCodeConstraintUnsatisfiable ErrorCode = "CONSTRAINT_UNSATISFIABLE"
	ErrCodeScreenShareUnsupported  ErrorCode = "SCREEN_SHARE_UNSUPPORTED"
	ErrCodeCodecUnsupported        ErrorCode = "CODEC_UNSUPPORTED"
	ErrCodeTransportTimeout        ErrorCode = "TRANSPORT_TIMEOUT"
	ErrCodeTransportClosed         ErrorCode = "TRANSPORT_CLOSED"
	ErrCodeProcessSpawn            ErrorCode = "PROCESS_SPAWN_FAILURE"
	ErrCodeProcessCrash            ErrorCode = "PROCESS_CRASH"
	ErrCodeSessionActive           ErrorCode = "SESSION_ACTIVE"
	ErrCodeSessionNotFound         ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidInput            ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthorized            ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

// AppError carries an error code, a human-readable message and the HTTP status
// the control API should answer with.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors

func NewPermissionDeniedError(message string) *AppError {
	return NewAppError(ErrCodePermissionDenied, message, http.StatusForbidden)
}

func NewDeviceNotFoundError(device string) *AppError {
	return NewAppError(ErrCodeDeviceNotFound, fmt.Sprintf("device %s not found", device), http.StatusNotFound)
}

func NewDeviceBusyError(device string) *AppError {
	return NewAppError(ErrCodeDeviceBusy, fmt.Sprintf("device %s is in use by another application", device), http.StatusConflict)
}

func NewCodecUnsupportedError(message string) *AppError {
	return NewAppError(ErrCodeCodecUnsupported, message, http.StatusUnprocessableEntity)
}

func NewTransportTimeoutError(message string) *AppError {
	return NewAppError(ErrCodeTransportTimeout, message, http.StatusGatewayTimeout)
}

func NewSessionActiveError() *AppError {
	return NewAppError(ErrCodeSessionActive, "a broadcast session is already active", http.StatusConflict)
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HTTPStatusFor maps any error onto an HTTP status for the control API.
// Non-AppError values are treated as internal failures.
func HTTPStatusFor(err error) int {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
