// Package workers contains the per-queue job handlers. Each worker computes
// a fresh, complete result for its job and writes the terminal record to the
// result store; on error it records the failure and returns the error so the
// queue's retry policy applies. A later successful attempt overwrites the
// failed record, which is why every attempt recomputes from scratch instead
// of patching prior partial output.
package workers

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// base carries the collaborators shared by every worker.
type base struct {
	results interfaces.ResultStore
	events  interfaces.EventService
	logger  arbor.ILogger
}

// complete writes the terminal completed record and publishes the lifecycle
// event. A store write failure is returned so the delivery is nacked and the
// job retried rather than lost.
func (b *base) complete(ctx context.Context, msg *models.JobMessage, domain string, payload models.ResultPayload) error {
	payload.Attempt = msg.Attempt
	if err := b.results.Complete(ctx, msg.ID, payload); err != nil {
		b.logger.Error().
			Err(err).
			Str("job_id", msg.ID).
			Msg("Failed to write completed result")
		return err
	}

	b.publish(ctx, interfaces.EventJobCompleted, msg, domain, "")

	b.logger.Info().
		Str("job_id", msg.ID).
		Str("queue", string(msg.Queue)).
		Str("domain", domain).
		Int("attempt", msg.Attempt).
		Msg("Job completed")
	return nil
}

// fail records the failure and returns the original error so the queue
// requeues or dead-letters the job.
func (b *base) fail(ctx context.Context, msg *models.JobMessage, domain string, cause error) error {
	if storeErr := b.results.Fail(ctx, msg.ID, cause.Error()); storeErr != nil {
		b.logger.Error().
			Err(storeErr).
			Str("job_id", msg.ID).
			Msg("Failed to write failed result")
	}

	b.publish(ctx, interfaces.EventJobFailed, msg, domain, cause.Error())

	b.logger.Warn().
		Err(cause).
		Str("job_id", msg.ID).
		Str("queue", string(msg.Queue)).
		Int("attempt", msg.Attempt).
		Msg("Job failed")
	return cause
}

func (b *base) publish(ctx context.Context, eventType interfaces.EventType, msg *models.JobMessage, domain, errMsg string) {
	if b.events == nil {
		return
	}
	payload := map[string]interface{}{
		"job_id":  msg.ID,
		"queue":   string(msg.Queue),
		"attempt": msg.Attempt,
	}
	if domain != "" {
		payload["domain"] = domain
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	_ = b.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload})
}
