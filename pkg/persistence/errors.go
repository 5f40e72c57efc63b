package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrContactNotFound indicates a contact was not found by the given identifier.
	ErrContactNotFound = errors.New("contact not found")

	// ErrEnrollmentNotFound indicates an enrollment was not found by the given identifier.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrEnrollmentExists indicates the contact already has an enrollment in
	// the workflow; the (workflow_id, contact_id) pair is unique.
	ErrEnrollmentExists = errors.New("enrollment already exists for this workflow and contact")

	// ErrEnrollmentSuperseded indicates a state transition was rejected because
	// the enrollment's current_step no longer matches the value read at
	// selection time, i.e. a concurrent run already applied a transition.
	ErrEnrollmentSuperseded = errors.New("enrollment superseded by concurrent update")

	// ErrCredentialsNotFound indicates no credentials are stored for the
	// organization and channel.
	ErrCredentialsNotFound = errors.New("channel credentials not found")

	// ErrConversationRecordNotFound indicates a conversation record was not
	// found by the given identifier.
	ErrConversationRecordNotFound = errors.New("conversation record not found")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op      string // Operation being performed (e.g., "Due", "Apply", "Create")
	Key     string // Row identifier if applicable
	Err     error  // Underlying error
	Message string // Additional context message
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for %s: %s (%v)", e.Op, e.Key, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{
		Op:  op,
		Key: key,
		Err: err,
	}
}
