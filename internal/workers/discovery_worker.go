package workers

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/discovery"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// DiscoveryWorker handles discovery jobs: a full provider fan-out, dedup,
// verification and ranking run for one domain.
type DiscoveryWorker struct {
	base
	executor *discovery.Executor
}

func NewDiscoveryWorker(executor *discovery.Executor, results interfaces.ResultStore, events interfaces.EventService, logger arbor.ILogger) *DiscoveryWorker {
	return &DiscoveryWorker{
		base:     base{results: results, events: events, logger: logger},
		executor: executor,
	}
}

func (w *DiscoveryWorker) Kind() models.JobKind {
	return models.KindDiscovery
}

func (w *DiscoveryWorker) Execute(ctx context.Context, msg *models.JobMessage) error {
	payload, ok := msg.Payload.(models.DiscoveryPayload)
	if !ok {
		return w.fail(ctx, msg, "", fmt.Errorf("unexpected payload type %T for discovery job", msg.Payload))
	}

	contacts, err := w.executor.Discover(ctx, discovery.Request{
		Domain: payload.Domain,
		Roles:  payload.Roles,
		Limit:  payload.Limit,
	})
	if err != nil {
		return w.fail(ctx, msg, payload.Domain, err)
	}

	result := models.ResultPayload{Contacts: contacts}
	if payload.Threshold > 0 {
		threshold := payload.Threshold
		result.Threshold = &threshold
	}

	return w.complete(ctx, msg, payload.Domain, result)
}
