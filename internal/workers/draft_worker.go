package workers

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// DraftWorker generates an outreach draft for a single contact. The
// draft-generation queue runs with concurrency 1 so model calls are
// serialized.
type DraftWorker struct {
	base
	model interfaces.DraftModel
}

func NewDraftWorker(model interfaces.DraftModel, results interfaces.ResultStore, events interfaces.EventService, logger arbor.ILogger) *DraftWorker {
	return &DraftWorker{
		base:  base{results: results, events: events, logger: logger},
		model: model,
	}
}

func (w *DraftWorker) Kind() models.JobKind {
	return models.KindDraft
}

func (w *DraftWorker) Execute(ctx context.Context, msg *models.JobMessage) error {
	payload, ok := msg.Payload.(models.DraftPayload)
	if !ok {
		return w.fail(ctx, msg, "", fmt.Errorf("unexpected payload type %T for draft job", msg.Payload))
	}
	if payload.Contact.Email == "" {
		return w.fail(ctx, msg, payload.Domain, fmt.Errorf("draft job has no contact email"))
	}

	draft, err := w.model.GenerateDraft(ctx, interfaces.DraftInput{
		Contact: payload.Contact,
		Domain:  payload.Domain,
		Brief:   payload.Brief,
	})
	if err != nil {
		return w.fail(ctx, msg, payload.Domain, err)
	}

	return w.complete(ctx, msg, payload.Domain, models.ResultPayload{Draft: draft})
}
