package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/discovery"
	"github.com/ternarybob/venator/internal/drafts"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
	"github.com/ternarybob/venator/internal/queue"
	"github.com/ternarybob/venator/internal/storage/memory"
	"github.com/ternarybob/venator/internal/verification"
)

type fixedProvider struct {
	contacts []models.Contact
}

func (p *fixedProvider) Name() string { return "pattern" }

func (p *fixedProvider) Discover(ctx context.Context, domain string, opts interfaces.DiscoveryOptions) ([]models.Contact, error) {
	return p.contacts, nil
}

func newExecutor(contacts ...models.Contact) *discovery.Executor {
	logger := arbor.NewLogger()
	return discovery.NewExecutor(
		[]interfaces.DiscoveryProvider{&fixedProvider{contacts: contacts}},
		verification.NewHeuristicVerifier(logger),
		logger,
	)
}

func discoveryContact(email string, confidence int) models.Contact {
	return models.Contact{
		Email:      email,
		Domain:     "example.com",
		Confidence: confidence,
		Sources:    []models.Source{{Provider: "pattern"}},
	}
}

func TestDiscoveryWorkerWritesCompletedRecord(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)
	w := NewDiscoveryWorker(newExecutor(discoveryContact("jane.doe@example.com", 72)), results, nil, logger)

	assert.Equal(t, models.KindDiscovery, w.Kind())

	msg := &models.JobMessage{
		ID:      "job_a",
		Queue:   models.QueueDiscovery,
		Attempt: 1,
		Payload: models.DiscoveryPayload{Domain: "example.com", Threshold: 85},
	}
	require.NoError(t, w.Execute(context.Background(), msg))

	record, err := results.Get(context.Background(), "job_a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Equal(t, 85, record.Threshold)
	assert.Equal(t, 1, record.Attempt)
	require.Len(t, record.Contacts, 1)
}

func TestDiscoveryWorkerWrongPayloadFails(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)
	w := NewDiscoveryWorker(newExecutor(), results, nil, logger)

	msg := &models.JobMessage{
		ID:      "job_a",
		Queue:   models.QueueDiscovery,
		Attempt: 1,
		Payload: models.DraftPayload{Domain: "example.com"},
	}
	err := w.Execute(context.Background(), msg)
	require.Error(t, err, "the error is returned so the queue retries")

	record, getErr := results.Get(context.Background(), "job_a")
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.NotEmpty(t, record.Error)
}

func TestVerificationWorker(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)
	w := NewVerificationWorker(verification.NewHeuristicVerifier(logger), results, nil, logger)

	msg := &models.JobMessage{
		ID:      "job_v",
		Queue:   models.QueueVerification,
		Attempt: 1,
		Payload: models.VerificationPayload{Emails: []string{"jane.doe@example.com", "info@example.com"}},
	}
	require.NoError(t, w.Execute(context.Background(), msg))

	record, err := results.Get(context.Background(), "job_v")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
	require.Len(t, record.Verifications, 2)
	assert.Equal(t, models.VerificationValid, record.Verifications[0].Status)
	assert.Equal(t, models.VerificationRisky, record.Verifications[1].Status)
}

func TestVerificationWorkerEmptyEmailsFails(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)
	w := NewVerificationWorker(verification.NewHeuristicVerifier(logger), results, nil, logger)

	msg := &models.JobMessage{
		ID:      "job_v",
		Queue:   models.QueueVerification,
		Attempt: 1,
		Payload: models.VerificationPayload{},
	}
	assert.Error(t, w.Execute(context.Background(), msg))
}

func TestEnrichmentWorkerMergesSourceRecord(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)
	ctx := context.Background()

	// Earlier discovery run whose contacts should survive enrichment
	require.NoError(t, results.Complete(ctx, "job_src", models.ResultPayload{
		Contacts: []models.Contact{discoveryContact("owner@example.com", 62)},
	}))

	w := NewEnrichmentWorker(newExecutor(
		discoveryContact("owner@example.com", 75),
		discoveryContact("jane.doe@example.com", 72),
	), results, nil, logger)

	msg := &models.JobMessage{
		ID:      "job_e",
		Queue:   models.QueueEnrichment,
		Attempt: 1,
		Payload: models.EnrichmentPayload{Domain: "example.com", SourceJobID: "job_src"},
	}
	require.NoError(t, w.Execute(ctx, msg))

	record, err := results.Get(ctx, "job_e")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Len(t, record.Contacts, 2, "existing and fresh contacts merge by email")

	// Source record is never mutated
	source, err := results.Get(ctx, "job_src")
	require.NoError(t, err)
	assert.Len(t, source.Contacts, 1)
}

func TestEnrichmentWorkerMissingSourceStandsAlone(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)

	w := NewEnrichmentWorker(newExecutor(discoveryContact("jane.doe@example.com", 72)), results, nil, logger)

	msg := &models.JobMessage{
		ID:      "job_e",
		Queue:   models.QueueEnrichment,
		Attempt: 1,
		Payload: models.EnrichmentPayload{Domain: "example.com", SourceJobID: "job_gone"},
	}
	require.NoError(t, w.Execute(context.Background(), msg))

	record, err := results.Get(context.Background(), "job_e")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Len(t, record.Contacts, 1)
}

func TestDraftWorker(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)
	w := NewDraftWorker(drafts.NewTemplateModel(), results, nil, logger)

	msg := &models.JobMessage{
		ID:      "job_d",
		Queue:   models.QueueDraftGeneration,
		Attempt: 1,
		Payload: models.DraftPayload{
			Domain:  "example.com",
			Contact: models.Contact{Email: "jane.doe@example.com", FirstName: "Jane"},
			Brief:   "We sell espresso machines.",
		},
	}
	require.NoError(t, w.Execute(context.Background(), msg))

	record, err := results.Get(context.Background(), "job_d")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Contains(t, record.Draft, "Jane")
	assert.Contains(t, record.Draft, "example.com")
}

// flakyModel fails its first N calls, then succeeds.
type flakyModel struct {
	calls    atomic.Int64
	failures int64
}

func (m *flakyModel) Name() string { return "flaky" }

func (m *flakyModel) GenerateDraft(ctx context.Context, input interfaces.DraftInput) (string, error) {
	if m.calls.Add(1) <= m.failures {
		return "", errors.New("model endpoint unavailable")
	}
	return "Hi " + input.Contact.FirstName + ",", nil
}

func TestRetriedJobCompletesOnLaterAttempt(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q, err := queue.NewBadgerQueue(db, models.QueueDraftGeneration, queue.Options{
		Retry: queue.RetryPolicy{MaxAttempts: 3, BackoffBase: 50 * time.Millisecond},
	}, logger)
	require.NoError(t, err)

	model := &flakyModel{failures: 2}
	pool := queue.NewWorkerPool(q, 1, 10*time.Millisecond, logger)
	pool.Register(NewDraftWorker(model, results, nil, logger))
	require.NoError(t, pool.Start())
	defer pool.Stop(context.Background())

	start := time.Now()
	_, err = q.Enqueue(ctx, models.JobMessage{
		ID:    "job_d",
		Queue: models.QueueDraftGeneration,
		Payload: models.DraftPayload{
			Domain:  "example.com",
			Contact: models.Contact{Email: "jane.doe@example.com", FirstName: "Jane"},
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		record, getErr := results.Get(ctx, "job_d")
		return getErr == nil && record.Status == models.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond, "a transient failure converges to completed before attempts exhaust")

	// Backoff between attempts: 50ms after the first failure, 100ms after
	// the second, so the successful third attempt cannot land earlier.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, int64(3), model.calls.Load())

	record, err := results.Get(ctx, "job_d")
	require.NoError(t, err)
	assert.Equal(t, 3, record.Attempt, "the completed record carries the winning attempt number")
	assert.Empty(t, record.Error, "the failures written by earlier attempts are overwritten")
	assert.NotEmpty(t, record.Draft)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Failed)
}

func TestDraftWorkerRequiresContactEmail(t *testing.T) {
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)
	w := NewDraftWorker(drafts.NewTemplateModel(), results, nil, logger)

	msg := &models.JobMessage{
		ID:      "job_d",
		Queue:   models.QueueDraftGeneration,
		Attempt: 1,
		Payload: models.DraftPayload{Domain: "example.com"},
	}
	assert.Error(t, w.Execute(context.Background(), msg))
}
