package interfaces

import (
	"context"

	"github.com/ternarybob/venator/internal/models"
)

// JobWorker executes one kind of job. The same worker serves both the queue
// path and the gateway's inline-fallback path, so implementations must be
// safely callable concurrently and compute a fresh full result on every run
// (re-running a job ID after a crash overwrites the record, it never appends).
type JobWorker interface {
	// Kind returns the payload kind this worker handles.
	Kind() models.JobKind

	// Execute runs the job and writes the terminal result record. A returned
	// error means the record was marked failed and the queue's retry policy
	// decides what happens next.
	Execute(ctx context.Context, msg *models.JobMessage) error
}
