// Package memory provides the process-local result store used when the
// durable backend is unreachable. The map is explicitly NOT shared across
// process instances: concurrent workers on different processes running in
// fallback mode do not see each other's writes. That consistency gap is a
// deliberate reliability trade-off, documented here rather than hidden.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// ResultStore is an in-process implementation of interfaces.ResultStore keyed
// the same way as the durable store.
type ResultStore struct {
	mu      sync.RWMutex
	records map[string]*models.ResultRecord
	logger  arbor.ILogger
}

// NewResultStore creates an empty in-memory result store.
func NewResultStore(logger arbor.ILogger) *ResultStore {
	return &ResultStore{
		records: make(map[string]*models.ResultRecord),
		logger:  logger,
	}
}

// Seed creates the pending record; a no-op when one already exists.
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.JobID]; exists {
		return nil
	}

	clone := *record
	s.records[record.JobID] = &clone
	return nil
}

// Get returns a copy of the record, or interfaces.ErrNotFound.
func (s *ResultStore) Get(ctx context.Context, jobID string) (*models.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[jobID]
	if !exists {
		return nil, interfaces.ErrNotFound
	}

	clone := *record
	return &clone, nil
}

// Complete transitions the record to completed, synthesizing a minimal record
// when none exists.
func (s *ResultStore) Complete(ctx context.Context, jobID string, payload models.ResultPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[jobID]
	if !exists {
		record = models.PendingStub(jobID)
		s.records[jobID] = record
	}

	record.ApplyPayload(payload)
	now := time.Now()
	record.Status = models.StatusCompleted
	record.FinishedAt = &now
	record.Error = ""
	return nil
}

// Fail transitions the record to failed.
func (s *ResultStore) Fail(ctx context.Context, jobID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[jobID]
	if !exists {
		record = models.PendingStub(jobID)
		s.records[jobID] = record
	}

	now := time.Now()
	record.Status = models.StatusFailed
	record.FinishedAt = &now
	record.Error = message
	return nil
}

// UpdateFields applies a partial update; interfaces.ErrNotFound when absent.
func (s *ResultStore) UpdateFields(ctx context.Context, jobID string, update models.FieldUpdate) (*models.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[jobID]
	if !exists {
		return nil, interfaces.ErrNotFound
	}

	if update.Threshold != nil {
		record.Threshold = *update.Threshold
	}

	clone := *record
	return &clone, nil
}

// Delete evicts a record.
func (s *ResultStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, jobID)
	return nil
}

// Close is a no-op.
func (s *ResultStore) Close() error {
	return nil
}
