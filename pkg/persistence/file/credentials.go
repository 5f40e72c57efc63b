package file

import (
	"context"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// CredentialRepository handles channel credential file operations. Records
// are keyed by organization and channel.
type CredentialRepository struct {
	root string
}

func (cr *CredentialRepository) Save(_ context.Context, creds *models.ChannelCredentials) error {
	creds.UpdatedAt = time.Now().UTC()

	return writeRecord(cr.root, "credentials", credentialKey(creds.OrgID, creds.Channel), creds)
}

func (cr *CredentialRepository) Get(_ context.Context, orgID string, channel models.Channel) (*models.ChannelCredentials, error) {
	creds := &models.ChannelCredentials{}

	err := readRecord(cr.root, "credentials", credentialKey(orgID, channel), creds, persistence.ErrCredentialsNotFound)
	if err != nil {
		return nil, err
	}

	return creds, nil
}

func credentialKey(orgID string, channel models.Channel) string {
	return orgID + "-" + string(channel)
}
