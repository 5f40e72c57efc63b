package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
)

// ConversationRepository handles conversation history database operations.
type ConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sql.DB, logger *slog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, logger: logger}
}

func (r *ConversationRepository) Append(ctx context.Context, record *models.ConversationRecord) error {
	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate conversation record ID: %w", err)
		}

		record.ID = id.String()
	}

	if record.SentAt.IsZero() {
		record.SentAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_records (id, org_id, contact_id, workflow_id, enrollment_id, channel, direction, body, provider_message_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		record.ID,
		record.OrgID,
		record.ContactID,
		nullableID(record.WorkflowID),
		nullableID(record.EnrollmentID),
		record.Channel,
		record.Direction,
		record.Body,
		record.ProviderMessageID,
		record.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append conversation record: %w", err)
	}

	return nil
}

func (r *ConversationRepository) ListByContact(ctx context.Context, orgID, contactID string) ([]*models.ConversationRecord, error) {
	query := `
		SELECT
			id
		  , org_id
		  , contact_id
		  , COALESCE(workflow_id::text, '')
		  , COALESCE(enrollment_id::text, '')
		  , channel
		  , direction
		  , body
		  , provider_message_id
		  , sent_at
		FROM conversation_records
		WHERE org_id = $1 AND contact_id = $2
		ORDER BY sent_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation records: %w", err)
	}

	defer func(ctx context.Context, r *ConversationRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	records := make([]*models.ConversationRecord, 0)

	for rows.Next() {
		record := &models.ConversationRecord{}

		err = rows.Scan(
			&record.ID,
			&record.OrgID,
			&record.ContactID,
			&record.WorkflowID,
			&record.EnrollmentID,
			&record.Channel,
			&record.Direction,
			&record.Body,
			&record.ProviderMessageID,
			&record.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation record: %w", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating conversation records: %w", err)
	}

	return records, nil
}

func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}
