package file

import (
	"context"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ContactRepository handles contact-related file operations.
type ContactRepository struct {
	root string
}

func (cr *ContactRepository) Save(_ context.Context, contact *models.Contact) error {
	now := time.Now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}

	contact.UpdatedAt = now

	return writeRecord(cr.root, "contacts", contact.ID, contact)
}

func (cr *ContactRepository) GetByID(_ context.Context, id string) (*models.Contact, error) {
	contact := &models.Contact{}

	err := readRecord(cr.root, "contacts", id, contact, persistence.ErrContactNotFound)
	if err != nil {
		return nil, err
	}

	return contact, nil
}
