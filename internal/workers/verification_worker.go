package workers

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// VerificationWorker handles standalone email-verification jobs for an
// explicit list of addresses.
type VerificationWorker struct {
	base
	verifier interfaces.EmailVerifier
}

func NewVerificationWorker(verifier interfaces.EmailVerifier, results interfaces.ResultStore, events interfaces.EventService, logger arbor.ILogger) *VerificationWorker {
	return &VerificationWorker{
		base:     base{results: results, events: events, logger: logger},
		verifier: verifier,
	}
}

func (w *VerificationWorker) Kind() models.JobKind {
	return models.KindVerification
}

func (w *VerificationWorker) Execute(ctx context.Context, msg *models.JobMessage) error {
	payload, ok := msg.Payload.(models.VerificationPayload)
	if !ok {
		return w.fail(ctx, msg, "", fmt.Errorf("unexpected payload type %T for verification job", msg.Payload))
	}
	if len(payload.Emails) == 0 {
		return w.fail(ctx, msg, payload.Domain, fmt.Errorf("verification job has no emails"))
	}

	verifications, err := w.verifier.VerifyEmails(ctx, payload.Emails)
	if err != nil {
		return w.fail(ctx, msg, payload.Domain, err)
	}

	return w.complete(ctx, msg, payload.Domain, models.ResultPayload{Verifications: verifications})
}
