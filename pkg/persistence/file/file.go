// Package file provides a file-based persistence implementation used by
// tests and local development.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadencehq/cadence/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system. Each
// collection is a directory of one-JSON-file-per-row.
type Persistence struct {
	root             string
	workflowRepo     *WorkflowRepository
	contactRepo      *ContactRepository
	enrollmentRepo   *EnrollmentRepository
	credentialRepo   *CredentialRepository
	conversationRepo *ConversationRepository
}

// NewPersistence creates a new instance of Persistence rooted at the given
// directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:             cleanRoot,
		workflowRepo:     &WorkflowRepository{root: cleanRoot},
		contactRepo:      &ContactRepository{root: cleanRoot},
		enrollmentRepo:   &EnrollmentRepository{root: cleanRoot},
		credentialRepo:   &CredentialRepository{root: cleanRoot},
		conversationRepo: &ConversationRepository{root: cleanRoot},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) Contacts() persistence.ContactRepository {
	return fp.contactRepo
}

func (fp *Persistence) Enrollments() persistence.EnrollmentRepository {
	return fp.enrollmentRepo
}

func (fp *Persistence) Credentials() persistence.CredentialRepository {
	return fp.credentialRepo
}

func (fp *Persistence) Conversations() persistence.ConversationRepository {
	return fp.conversationRepo
}

func writeRecord(root, collection, id string, record any) error {
	dir := filepath.Join(root, collection)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", collection, err)
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write %s record: %w", collection, err)
	}

	return nil
}

// readRecord loads one record; notFound is returned unwrapped when the file
// does not exist so callers can use errors.Is against the sentinel.
func readRecord(root, collection, id string, record any, notFound error) error {
	data, err := os.ReadFile(filepath.Join(root, collection, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read %s record: %w", collection, err)
	}

	err = json.Unmarshal(data, record)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s record: %w", collection, err)
	}

	return nil
}

func listIDs(root, collection string) ([]string, error) {
	dir := os.DirFS(filepath.Join(root, collection))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
