package storage

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// FallbackStore wraps a durable result store with an in-process fallback.
// Every operation first attempts the durable backend; on a transport failure
// it falls back to the in-memory map, and operations prefer durable success
// whenever the backend is reachable again.
//
// The fallback map is process-local and not shared across instances; a record
// written in fallback mode is invisible to other processes until the durable
// backend takes writes again. See the memory package doc for the trade-off.
type FallbackStore struct {
	durable  interfaces.ResultStore
	fallback interfaces.ResultStore
	logger   arbor.ILogger
}

// NewFallbackStore composes the durable store with the in-memory fallback.
func NewFallbackStore(durable, fallback interfaces.ResultStore, logger arbor.ILogger) *FallbackStore {
	return &FallbackStore{
		durable:  durable,
		fallback: fallback,
		logger:   logger,
	}
}

// transportFailure distinguishes backend errors from logical ones (not-found
// is an answer, not a failure).
func transportFailure(err error) bool {
	return err != nil && !errors.Is(err, interfaces.ErrNotFound)
}

// Seed writes the pending record, falling back to memory on transport failure.
func (s *FallbackStore) Seed(ctx context.Context, record *models.ResultRecord) error {
	err := s.durable.Seed(ctx, record)
	if transportFailure(err) {
		s.logger.Warn().
			Err(err).
			Str("job_id", record.JobID).
			Msg("Durable store unavailable, seeding in-memory fallback")
		return s.fallback.Seed(ctx, record)
	}
	return err
}

// Get prefers the durable record; when the durable store has no record the
// fallback is consulted so writes taken during an outage remain visible.
func (s *FallbackStore) Get(ctx context.Context, jobID string) (*models.ResultRecord, error) {
	record, err := s.durable.Get(ctx, jobID)
	if err == nil {
		return record, nil
	}
	if transportFailure(err) {
		s.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Msg("Durable store unavailable, reading in-memory fallback")
		return s.fallback.Get(ctx, jobID)
	}
	// Durable says not-found; a fallback write may still exist
	return s.fallback.Get(ctx, jobID)
}

// Complete transitions the record to completed.
func (s *FallbackStore) Complete(ctx context.Context, jobID string, payload models.ResultPayload) error {
	err := s.durable.Complete(ctx, jobID, payload)
	if transportFailure(err) {
		s.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Msg("Durable store unavailable, completing in-memory fallback")
		return s.fallback.Complete(ctx, jobID, payload)
	}
	return err
}

// Fail transitions the record to failed.
func (s *FallbackStore) Fail(ctx context.Context, jobID string, message string) error {
	err := s.durable.Fail(ctx, jobID, message)
	if transportFailure(err) {
		s.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Msg("Durable store unavailable, failing in-memory fallback")
		return s.fallback.Fail(ctx, jobID, message)
	}
	return err
}

// UpdateFields applies a partial update.
func (s *FallbackStore) UpdateFields(ctx context.Context, jobID string, update models.FieldUpdate) (*models.ResultRecord, error) {
	record, err := s.durable.UpdateFields(ctx, jobID, update)
	if err == nil {
		return record, nil
	}
	if transportFailure(err) {
		s.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Msg("Durable store unavailable, updating in-memory fallback")
		return s.fallback.UpdateFields(ctx, jobID, update)
	}
	// Not found durably; the record may live in the fallback
	return s.fallback.UpdateFields(ctx, jobID, update)
}

// Delete evicts a record from both stores.
func (s *FallbackStore) Delete(ctx context.Context, jobID string) error {
	durableErr := s.durable.Delete(ctx, jobID)
	fallbackErr := s.fallback.Delete(ctx, jobID)
	if transportFailure(durableErr) {
		return fallbackErr
	}
	return durableErr
}

// Close closes both stores.
func (s *FallbackStore) Close() error {
	fallbackErr := s.fallback.Close()
	if err := s.durable.Close(); err != nil {
		return err
	}
	return fallbackErr
}
