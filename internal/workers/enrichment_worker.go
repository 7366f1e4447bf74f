package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/discovery"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// EnrichmentWorker re-runs discovery for a domain and merges the fresh
// contacts with the contacts of an earlier job's record when one is
// referenced. The merged list lands on the enrichment job's own record; the
// source record is never mutated.
type EnrichmentWorker struct {
	base
	executor *discovery.Executor
}

func NewEnrichmentWorker(executor *discovery.Executor, results interfaces.ResultStore, events interfaces.EventService, logger arbor.ILogger) *EnrichmentWorker {
	return &EnrichmentWorker{
		base:     base{results: results, events: events, logger: logger},
		executor: executor,
	}
}

func (w *EnrichmentWorker) Kind() models.JobKind {
	return models.KindEnrichment
}

func (w *EnrichmentWorker) Execute(ctx context.Context, msg *models.JobMessage) error {
	payload, ok := msg.Payload.(models.EnrichmentPayload)
	if !ok {
		return w.fail(ctx, msg, "", fmt.Errorf("unexpected payload type %T for enrichment job", msg.Payload))
	}

	fresh, err := w.executor.Discover(ctx, discovery.Request{
		Domain: payload.Domain,
		Roles:  payload.Roles,
		Limit:  payload.Limit,
	})
	if err != nil {
		return w.fail(ctx, msg, payload.Domain, err)
	}

	contacts := fresh
	if payload.SourceJobID != "" {
		source, err := w.results.Get(ctx, payload.SourceJobID)
		switch {
		case err == nil && len(source.Contacts) > 0:
			// Existing contacts first so their identity and sources win the
			// merge; fresh duplicates fold into them.
			contacts = discovery.Dedupe(append(append([]models.Contact{}, source.Contacts...), fresh...))
		case err != nil && !errors.Is(err, interfaces.ErrNotFound):
			return w.fail(ctx, msg, payload.Domain, err)
		default:
			// Missing or empty source record enriches nothing but the run
			// still stands on its own.
			w.logger.Debug().
				Str("job_id", msg.ID).
				Str("source_job_id", payload.SourceJobID).
				Msg("Source record missing or empty, using fresh contacts only")
		}
	}

	return w.complete(ctx, msg, payload.Domain, models.ResultPayload{Contacts: contacts})
}
