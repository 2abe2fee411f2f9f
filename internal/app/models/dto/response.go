package dto

import (
	"time"

	"github.com/academia/gradebot/internal/pkg/apperrors"
)

// APIResponse is the envelope of every successful HTTP response.
type APIResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message,omitempty"`
	Data      interface{}  `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewSuccessResponse wraps data in a successful envelope.
func NewSuccessResponse(data interface{}, message string) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// OperationStatus is the outcome of a grade operation.
type OperationStatus string

const (
	StatusOK    OperationStatus = "ok"
	StatusError OperationStatus = "error"
)

// OperationResult is what the assistant tools return: a status, the error
// kind on failure, a human message and the operation payload.
type OperationResult struct {
	Status  OperationStatus `json:"status"`
	Kind    apperrors.Kind  `json:"kind,omitempty"`
	Message string          `json:"message"`
	Data    interface{}     `json:"data,omitempty"`
}

// OK builds a successful result.
func OK(message string, data interface{}) *OperationResult {
	return &OperationResult{Status: StatusOK, Message: message, Data: data}
}

// Failed builds a failed result from err without leaking internal causes.
func Failed(err error) *OperationResult {
	return &OperationResult{
		Status:  StatusError,
		Kind:    apperrors.KindOf(err),
		Message: apperrors.Message(err),
	}
}

// Succeeded reports whether the operation worked.
func (r *OperationResult) Succeeded() bool {
	return r != nil && r.Status == StatusOK
}
