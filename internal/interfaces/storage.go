package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/venator/internal/models"
)

// ErrNotFound is returned when no result record exists for a job ID.
var ErrNotFound = errors.New("result record not found")

// ResultStore is the durable mapping jobID -> ResultRecord. Records are read
// and written by job ID only; no secondary indexes.
//
// Only the gateway (seed) and the workers/inline executor (complete/fail)
// write records. All writes are read-merge-write so unrelated fields are
// never clobbered, and terminal statuses are never regressed back to pending.
type ResultStore interface {
	// Seed creates the pending record at submission time. Seeding an ID that
	// already has a record is a no-op so a redelivered job cannot reset a
	// terminal state.
	Seed(ctx context.Context, record *models.ResultRecord) error

	// Get returns the record for a job ID, or ErrNotFound.
	Get(ctx context.Context, jobID string) (*models.ResultRecord, error)

	// Complete transitions the record to completed with the given payload.
	// A missing record is synthesized rather than treated as an error.
	Complete(ctx context.Context, jobID string, payload models.ResultPayload) error

	// Fail transitions the record to failed with the error message attached.
	Fail(ctx context.Context, jobID string, message string) error

	// UpdateFields applies a partial update and returns the updated record.
	// Unlike Complete/Fail it returns ErrNotFound when no record exists.
	UpdateFields(ctx context.Context, jobID string, update models.FieldUpdate) (*models.ResultRecord, error)

	// Delete evicts a record.
	Delete(ctx context.Context, jobID string) error

	Close() error
}
