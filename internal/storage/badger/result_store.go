package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// keyPrefix is the persisted key convention: venator:job:<jobId>.
const keyPrefix = "venator:job:"

// ResultStore is the durable badgerhold-backed implementation of
// interfaces.ResultStore.
type ResultStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStore creates the durable result store.
func NewResultStore(db *BadgerDB, logger arbor.ILogger) *ResultStore {
	return &ResultStore{
		db:     db,
		logger: logger,
	}
}

func recordKey(jobID string) string {
	return keyPrefix + jobID
}

// Seed creates the pending record; a no-op when a record already exists so a
// late seed cannot regress a terminal state.
func (s *ResultStore) Seed(ctx context.Context, record *models.ResultRecord) error {
	if record == nil || record.JobID == "" {
		return fmt.Errorf("cannot seed record without job ID")
	}
	if record.Status == "" {
		record.Status = models.StatusPending
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}

	err := s.db.Store().Insert(recordKey(record.JobID), record)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to seed result record: %w", err)
	}

	s.logger.Debug().
		Str("job_id", record.JobID).
		Str("domain", record.Domain).
		Msg("Result record seeded")

	return nil
}

// Get returns the record for a job ID, or interfaces.ErrNotFound.
func (s *ResultStore) Get(ctx context.Context, jobID string) (*models.ResultRecord, error) {
	var record models.ResultRecord
	err := s.db.Store().Get(recordKey(jobID), &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result record: %w", err)
	}
	return &record, nil
}

// Complete transitions the record to completed. Read-merge-write: the stored
// record is loaded, mutated and persisted so unrelated fields survive. A
// missing record is synthesized rather than treated as an error.
func (s *ResultStore) Complete(ctx context.Context, jobID string, payload models.ResultPayload) error {
	record, err := s.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			return err
		}
		record = models.PendingStub(jobID)
	}

	record.ApplyPayload(payload)
	now := time.Now()
	record.Status = models.StatusCompleted
	record.FinishedAt = &now
	record.Error = ""

	if err := s.db.Store().Upsert(recordKey(jobID), record); err != nil {
		return fmt.Errorf("failed to complete result record: %w", err)
	}
	return nil
}

// Fail transitions the record to failed with the error message attached.
func (s *ResultStore) Fail(ctx context.Context, jobID string, message string) error {
	record, err := s.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			return err
		}
		record = models.PendingStub(jobID)
	}

	now := time.Now()
	record.Status = models.StatusFailed
	record.FinishedAt = &now
	record.Error = message

	if err := s.db.Store().Upsert(recordKey(jobID), record); err != nil {
		return fmt.Errorf("failed to mark result record failed: %w", err)
	}
	return nil
}

// UpdateFields applies a narrow partial update without touching the rest of
// the record. Returns interfaces.ErrNotFound when no record exists yet.
func (s *ResultStore) UpdateFields(ctx context.Context, jobID string, update models.FieldUpdate) (*models.ResultRecord, error) {
	record, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if update.Threshold != nil {
		record.Threshold = *update.Threshold
	}

	if err := s.db.Store().Upsert(recordKey(jobID), record); err != nil {
		return nil, fmt.Errorf("failed to update result record: %w", err)
	}
	return record, nil
}

// Delete evicts a record.
func (s *ResultStore) Delete(ctx context.Context, jobID string) error {
	err := s.db.Store().Delete(recordKey(jobID), &models.ResultRecord{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete result record: %w", err)
	}
	return nil
}

// Close is a no-op; the shared connection is owned by the storage manager.
func (s *ResultStore) Close() error {
	return nil
}
