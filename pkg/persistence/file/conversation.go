package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ConversationRepository handles conversation history file operations.
type ConversationRepository struct {
	root string
}

func (cr *ConversationRepository) Append(_ context.Context, record *models.ConversationRecord) error {
	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate conversation record ID: %w", err)
		}

		record.ID = id.String()
	}

	return writeRecord(cr.root, "conversations", record.ID, record)
}

func (cr *ConversationRepository) ListByContact(ctx context.Context, orgID, contactID string) ([]*models.ConversationRecord, error) {
	ids, err := listIDs(cr.root, "conversations")
	if err != nil {
		return nil, err
	}

	records := make([]*models.ConversationRecord, 0)

	for _, id := range ids {
		record := &models.ConversationRecord{}

		err := readRecord(cr.root, "conversations", id, record, persistence.ErrConversationRecordNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation record %s: %w", id, err)
		}

		if record.OrgID != orgID || record.ContactID != contactID {
			continue
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SentAt.Before(records[j].SentAt)
	})

	return records, nil
}
