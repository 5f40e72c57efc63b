package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// EnrollmentRepository handles enrollment-related database operations.
type EnrollmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sql.DB, logger *slog.Logger) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, logger: logger}
}

func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()

	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}

	enrollment.UpdatedAt = now

	if enrollment.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate enrollment ID: %w", err)
		}

		enrollment.ID = id.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, org_id, workflow_id, contact_id, current_step, status, next_send_at, retry_count, last_error, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		enrollment.ID,
		enrollment.OrgID,
		enrollment.WorkflowID,
		enrollment.ContactID,
		enrollment.CurrentStep,
		enrollment.Status,
		enrollment.NextSendAt,
		enrollment.RetryCount,
		enrollment.LastError,
		enrollment.CompletedAt,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.ErrEnrollmentExists
		}

		return fmt.Errorf("failed to insert enrollment: %w", err)
	}

	return nil
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	row := r.db.QueryRowContext(ctx, selectEnrollment+" WHERE id = $1", id)

	enrollment, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrEnrollmentNotFound
		}

		return nil, err
	}

	return enrollment, nil
}

// Due selects the batch for one engine pass: active rows whose scheduled time
// has passed, oldest due first.
func (r *EnrollmentRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Enrollment, error) {
	query := selectEnrollment + `
		WHERE status = $1 AND next_send_at <= $2
		ORDER BY next_send_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, models.EnrollmentStatusActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due enrollments: %w", err)
	}

	defer func(ctx context.Context, r *EnrollmentRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	enrollments := make([]*models.Enrollment, 0)

	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}

		enrollments = append(enrollments, enrollment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating due enrollments: %w", err)
	}

	return enrollments, nil
}

// Apply writes a state transition guarded by the current_step read at
// selection time, so a concurrent run that already advanced the row cannot
// be overwritten.
func (r *EnrollmentRepository) Apply(ctx context.Context, id string, expectedStep int, patch models.EnrollmentPatch) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = $3,
			current_step = $4,
			next_send_at = $5,
			retry_count = $6,
			last_error = $7,
			completed_at = $8,
			updated_at = NOW()
		WHERE id = $1 AND current_step = $2
	`,
		id,
		expectedStep,
		patch.Status,
		patch.CurrentStep,
		patch.NextSendAt,
		patch.RetryCount,
		patch.LastError,
		patch.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to apply enrollment transition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		_, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}

		return persistence.ErrEnrollmentSuperseded
	}

	return nil
}

func (r *EnrollmentRepository) PauseByWorkflow(ctx context.Context, workflowID, reason string) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = $3, last_error = $4, updated_at = NOW()
		WHERE workflow_id = $1 AND status = $2
	`, workflowID, models.EnrollmentStatusActive, models.EnrollmentStatusPaused, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to pause enrollments: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(affected), nil
}

const selectEnrollment = `
	SELECT
		id
	  , org_id
	  , workflow_id
	  , contact_id
	  , current_step
	  , status
	  , next_send_at
	  , retry_count
	  , last_error
	  , completed_at
	  , created_at
	  , updated_at
	FROM enrollments
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	enrollment := &models.Enrollment{}

	err := row.Scan(
		&enrollment.ID,
		&enrollment.OrgID,
		&enrollment.WorkflowID,
		&enrollment.ContactID,
		&enrollment.CurrentStep,
		&enrollment.Status,
		&enrollment.NextSendAt,
		&enrollment.RetryCount,
		&enrollment.LastError,
		&enrollment.CompletedAt,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return enrollment, nil
}
