package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ContactRepository handles contact-related database operations.
type ContactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(db *sql.DB, logger *slog.Logger) *ContactRepository {
	return &ContactRepository{db: db, logger: logger}
}

func (r *ContactRepository) Save(ctx context.Context, contact *models.Contact) error {
	now := time.Now().UTC()

	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}

	contact.UpdatedAt = now

	if contact.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate contact ID: %w", err)
		}

		contact.ID = id.String()
	}

	properties, err := json.Marshal(contact.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal contact properties: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, org_id, name, company, phone, email, properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			company = EXCLUDED.company,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			properties = EXCLUDED.properties,
			updated_at = EXCLUDED.updated_at
	`, contact.ID, contact.OrgID, contact.Name, contact.Company, contact.Phone, contact.Email, properties, contact.CreatedAt, contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `
		SELECT
			id
		  , org_id
		  , name
		  , company
		  , phone
		  , email
		  , properties
		  , created_at
		  , updated_at
		FROM contacts
		WHERE id = $1
	`

	contact := &models.Contact{}

	var properties []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&contact.ID,
		&contact.OrgID,
		&contact.Name,
		&contact.Company,
		&contact.Phone,
		&contact.Email,
		&properties,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	err = json.Unmarshal(properties, &contact.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact properties: %w", err)
	}

	return contact, nil
}
