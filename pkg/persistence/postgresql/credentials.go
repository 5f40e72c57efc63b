package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// CredentialRepository handles channel credential database operations.
type CredentialRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *sql.DB, logger *slog.Logger) *CredentialRepository {
	return &CredentialRepository{db: db, logger: logger}
}

func (r *CredentialRepository) Save(ctx context.Context, creds *models.ChannelCredentials) error {
	creds.UpdatedAt = time.Now().UTC()

	config, err := json.Marshal(creds.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal credential config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO channel_credentials (org_id, channel, config, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, channel)
		DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at
	`, creds.OrgID, creds.Channel, config, creds.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save channel credentials: %w", err)
	}

	return nil
}

func (r *CredentialRepository) Get(ctx context.Context, orgID string, channel models.Channel) (*models.ChannelCredentials, error) {
	query := `
		SELECT org_id, channel, config, updated_at
		FROM channel_credentials
		WHERE org_id = $1 AND channel = $2
	`

	creds := &models.ChannelCredentials{}

	var config []byte

	err := r.db.QueryRowContext(ctx, query, orgID, channel).Scan(&creds.OrgID, &creds.Channel, &config, &creds.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrCredentialsNotFound
		}

		return nil, fmt.Errorf("failed to scan channel credentials: %w", err)
	}

	err = json.Unmarshal(config, &creds.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential config: %w", err)
	}

	return creds, nil
}
