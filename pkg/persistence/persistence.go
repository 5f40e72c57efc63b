// Package persistence provides the data storage abstraction layer for
// workflows, contacts, enrollments and channel credentials.
package persistence

import (
	"context"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// Persistence is the root storage interface. Implementations exist for the
// file system (tests, local development) and PostgreSQL (production).
type Persistence interface {
	Workflows() WorkflowRepository
	Contacts() ContactRepository
	Enrollments() EnrollmentRepository
	Credentials() CredentialRepository
	Conversations() ConversationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows together with their ordered steps.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context, orgID string) ([]*models.Workflow, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// ContactRepository stores contacts. The engine only reads contacts.
type ContactRepository interface {
	Save(ctx context.Context, contact *models.Contact) error
	GetByID(ctx context.Context, id string) (*models.Contact, error)
}

// EnrollmentRepository stores enrollment execution state.
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)

	// Due returns active enrollments with next_send_at <= now, oldest due
	// first, capped at limit.
	Due(ctx context.Context, now time.Time, limit int) ([]*models.Enrollment, error)

	// Apply writes a state transition as one unit. The patch is only applied
	// when the row's current_step still equals expectedStep; otherwise
	// ErrEnrollmentSuperseded is returned and the row is left untouched.
	Apply(ctx context.Context, id string, expectedStep int, patch models.EnrollmentPatch) error

	// PauseByWorkflow pauses every active enrollment of the given workflow
	// and returns how many rows changed.
	PauseByWorkflow(ctx context.Context, workflowID, reason string) (int, error)
}

// CredentialRepository stores organization-scoped channel credentials.
type CredentialRepository interface {
	Save(ctx context.Context, creds *models.ChannelCredentials) error
	Get(ctx context.Context, orgID string, channel models.Channel) (*models.ChannelCredentials, error)
}

// ConversationRepository stores the outbound message history.
type ConversationRepository interface {
	Append(ctx context.Context, record *models.ConversationRecord) error
	ListByContact(ctx context.Context, orgID, contactID string) ([]*models.ConversationRecord, error)
}
