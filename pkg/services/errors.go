// Package services provides the business operations behind the API surface:
// workflow management, enrollment lifecycle and conversation history
// recording.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. Validation errors map to 400 responses, conflict
// errors to 409.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrStepOrderNotDense = errors.New("step orders must be a dense 1-based sequence")
	ErrInvalidContent    = errors.New("step content does not match its channel schema")

	ErrWorkflowInactive    = errors.New("workflow is not active")
	ErrAlreadyEnrolled     = errors.New("contact is already enrolled in this workflow")
	ErrEnrollmentNotPaused = errors.New("enrollment is not paused")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrStepOrderNotDense) ||
		errors.Is(err, ErrInvalidContent)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowInactive) ||
		errors.Is(err, ErrAlreadyEnrolled) ||
		errors.Is(err, ErrEnrollmentNotPaused)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
