// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db               *sql.DB
	logger           *slog.Logger
	workflowRepo     *WorkflowRepository
	contactRepo      *ContactRepository
	enrollmentRepo   *EnrollmentRepository
	credentialRepo   *CredentialRepository
	conversationRepo *ConversationRepository
}

// NewPersistence connects to the database, runs migrations, and returns the
// repository set.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.InfoContext(ctx, "PostgreSQL persistence initialized successfully")

	return &Persistence{
		db:               database,
		logger:           logger.With("component", "postgres_persistence"),
		workflowRepo:     NewWorkflowRepository(database, logger),
		contactRepo:      NewContactRepository(database, logger),
		enrollmentRepo:   NewEnrollmentRepository(database, logger),
		credentialRepo:   NewCredentialRepository(database, logger),
		conversationRepo: NewConversationRepository(database, logger),
	}, nil
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) Contacts() persistence.ContactRepository {
	return p.contactRepo
}

func (p *Persistence) Enrollments() persistence.EnrollmentRepository {
	return p.enrollmentRepo
}

func (p *Persistence) Credentials() persistence.CredentialRepository {
	return p.credentialRepo
}

func (p *Persistence) Conversations() persistence.ConversationRepository {
	return p.conversationRepo
}

// HealthCheck verifies database connectivity.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
