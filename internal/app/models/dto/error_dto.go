package dto

import (
	"time"

	"github.com/academia/gradebot/internal/pkg/apperrors"
)

// ErrorCode represents standardized error codes
type ErrorCode string

// Standard error codes for the application
const (
	// Authentication errors
	ErrorCodeInvalidToken ErrorCode = "AUTH_005"
	ErrorCodeExpiredToken ErrorCode = "AUTH_006"
	ErrorCodeUnauthorized ErrorCode = "AUTH_008"
	ErrorCodeForbidden    ErrorCode = "AUTH_009"

	// Resource errors
	ErrorCodeResourceNotFound ErrorCode = "RES_001"
	ErrorCodeNoRecords        ErrorCode = "RES_005"

	// Validation errors
	ErrorCodeValidationFailed ErrorCode = "VAL_001"
	ErrorCodeInvalidArgument  ErrorCode = "VAL_002"
	ErrorCodeNotApplicable    ErrorCode = "VAL_003"

	// Server errors
	ErrorCodeInternalServer       ErrorCode = "SRV_001"
	ErrorCodeStoreUnavailable     ErrorCode = "SRV_002"
	ErrorCodeExternalServiceError ErrorCode = "SRV_003"
)

var kindCodes = map[apperrors.Kind]ErrorCode{
	apperrors.KindInvalidArgument:  ErrorCodeInvalidArgument,
	apperrors.KindNotFound:         ErrorCodeResourceNotFound,
	apperrors.KindNoRecords:        ErrorCodeNoRecords,
	apperrors.KindStoreUnavailable: ErrorCodeStoreUnavailable,
	apperrors.KindUnauthenticated:  ErrorCodeUnauthorized,
	apperrors.KindPermissionDenied: ErrorCodeForbidden,
	apperrors.KindNotApplicable:    ErrorCodeNotApplicable,
	apperrors.KindInternal:         ErrorCodeInternalServer,

	apperrors.KindServiceUnavailable: ErrorCodeExternalServiceError,
}

// ErrorCodeForKind returns the code reported for an error kind.
func ErrorCodeForKind(kind apperrors.Kind) ErrorCode {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return ErrorCodeInternalServer
}

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

// Severity levels
const (
	ErrorSeverityError    ErrorSeverity = "ERROR"
	ErrorSeverityCritical ErrorSeverity = "CRITICAL"
)

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code     ErrorCode      `json:"code"`
	Kind     apperrors.Kind `json:"kind,omitempty"`
	Message  string         `json:"message"`
	Field    string         `json:"field,omitempty"`
	Severity ErrorSeverity  `json:"severity"`
	Details  interface{}    `json:"details,omitempty"`
}

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success   bool         `json:"success"`
	Error     *ErrorDetail `json:"error"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewErrorDetail creates a new error detail
func NewErrorDetail(code ErrorCode, message string) *ErrorDetail {
	return &ErrorDetail{
		Code:     code,
		Message:  message,
		Severity: ErrorSeverityError,
	}
}

// NewErrorDetailFromError builds the detail for err. Only the caller-facing
// message is exposed.
func NewErrorDetailFromError(err error) *ErrorDetail {
	kind := apperrors.KindOf(err)
	detail := NewErrorDetail(ErrorCodeForKind(kind), apperrors.Message(err))
	detail.Kind = kind
	if kind == apperrors.KindStoreUnavailable || kind == apperrors.KindInternal {
		detail.Severity = ErrorSeverityCritical
	}
	return detail
}

// WithDetails adds additional details to the error
func (e *ErrorDetail) WithDetails(details interface{}) *ErrorDetail {
	e.Details = details
	return e
}

// NewErrorResponse creates a standard error response
func NewErrorResponse(errorDetail *ErrorDetail) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     errorDetail,
		Timestamp: time.Now(),
	}
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ErrorDetail `json:"errors"`
}

// NewValidationErrors creates a new validation errors container
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ErrorDetail, 0),
	}
}

// AddError adds a validation error to the container
func (v *ValidationErrors) AddError(field, message string) *ValidationErrors {
	v.Errors = append(v.Errors, ErrorDetail{
		Code:     ErrorCodeValidationFailed,
		Kind:     apperrors.KindInvalidArgument,
		Message:  message,
		Field:    field,
		Severity: ErrorSeverityError,
	})
	return v
}

