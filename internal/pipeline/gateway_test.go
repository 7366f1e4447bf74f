package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/discovery"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
	"github.com/ternarybob/venator/internal/storage/memory"
	"github.com/ternarybob/venator/internal/verification"
	"github.com/ternarybob/venator/internal/workers"
)

// fakeQueue records enqueued messages and can be forced to fail like an
// unreachable transport.
type fakeQueue struct {
	name      models.QueueName
	enqueued  []models.JobMessage
	err       error
	onEnqueue func(msg models.JobMessage)
}

func (q *fakeQueue) Name() models.QueueName { return q.name }

func (q *fakeQueue) Enqueue(ctx context.Context, msg models.JobMessage) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if q.onEnqueue != nil {
		q.onEnqueue(msg)
	}
	q.enqueued = append(q.enqueued, msg)
	return msg.ID, nil
}

func (q *fakeQueue) Receive(ctx context.Context) (*interfaces.Delivery, error) {
	return nil, interfaces.ErrNoMessage
}

func (q *fakeQueue) Extend(ctx context.Context, messageID string, d time.Duration) error {
	return nil
}

func (q *fakeQueue) Stats(ctx context.Context) (interfaces.QueueStats, error) {
	return interfaces.QueueStats{Queue: q.name}, nil
}

func (q *fakeQueue) Sweep(ctx context.Context) error { return nil }

type fixedProvider struct {
	contacts []models.Contact
}

func (p *fixedProvider) Name() string { return "pattern" }

func (p *fixedProvider) Discover(ctx context.Context, domain string, opts interfaces.DiscoveryOptions) ([]models.Contact, error) {
	return p.contacts, nil
}

type gatewayFixture struct {
	gateway *Gateway
	queue   *fakeQueue
	results interfaces.ResultStore
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	logger := arbor.NewLogger()
	results := memory.NewResultStore(logger)

	provider := &fixedProvider{contacts: []models.Contact{
		{Email: "owner@example.com", Domain: "example.com", Confidence: 62, Sources: []models.Source{{Provider: "pattern"}}},
		{Email: "jane.doe@example.com", Domain: "example.com", Confidence: 72, Sources: []models.Source{{Provider: "pattern"}}},
	}}
	executor := discovery.NewExecutor(
		[]interfaces.DiscoveryProvider{provider},
		verification.NewHeuristicVerifier(logger),
		logger,
	)

	jobWorkers := map[models.JobKind]interfaces.JobWorker{
		models.KindDiscovery:    workers.NewDiscoveryWorker(executor, results, nil, logger),
		models.KindVerification: workers.NewVerificationWorker(verification.NewHeuristicVerifier(logger), results, nil, logger),
	}

	q := &fakeQueue{name: models.QueueDiscovery}
	queues := map[models.QueueName]interfaces.JobQueue{
		models.QueueDiscovery:    q,
		models.QueueVerification: &fakeQueue{name: models.QueueVerification},
	}

	return &gatewayFixture{
		gateway: NewGateway(queues, jobWorkers, results, nil, logger),
		queue:   q,
		results: results,
	}
}

func TestSubmitSeedsPendingBeforeEnqueue(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	f.queue.onEnqueue = func(msg models.JobMessage) {
		record, err := f.results.Get(ctx, msg.ID)
		require.NoError(t, err, "pending record must exist before the transport write")
		assert.Equal(t, models.StatusPending, record.Status)
	}

	jobID, err := f.gateway.SubmitDiscovery(ctx, DiscoveryRequest{Domain: "example.com"})
	require.NoError(t, err)
	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, jobID, f.queue.enqueued[0].ID)
}

func TestSubmitNormalizesDomain(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.gateway.SubmitDiscovery(context.Background(), DiscoveryRequest{
		Domain: "https://www.Example.com/contact",
	})
	require.NoError(t, err)
	require.Len(t, f.queue.enqueued, 1)

	payload := f.queue.enqueued[0].Payload.(models.DiscoveryPayload)
	assert.Equal(t, "example.com", payload.Domain)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	_, err := f.gateway.SubmitDiscovery(ctx, DiscoveryRequest{})
	assert.Error(t, err, "missing domain is rejected synchronously")

	_, err = f.gateway.SubmitDiscovery(ctx, DiscoveryRequest{Domain: "not a domain"})
	assert.Error(t, err)

	_, err = f.gateway.SubmitVerification(ctx, VerificationRequest{Emails: []string{"not-an-email"}})
	assert.Error(t, err)

	assert.Empty(t, f.queue.enqueued, "no job is created for malformed input")
}

func TestSubmitFallsBackInlineOnEnqueueFailure(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	f.queue.err = errors.New("transport unavailable")

	jobID, err := f.gateway.SubmitDiscovery(ctx, DiscoveryRequest{Domain: "example.com"})
	require.NoError(t, err, "total queue failure still returns a job ID")
	assert.True(t, strings.HasPrefix(jobID, "inline_"))

	record, err := f.gateway.Poll(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status, "inline path writes the terminal record synchronously")
	assert.NotEmpty(t, record.Contacts)
}

func TestSubmitQueueMissingRunsInline(t *testing.T) {
	f := newGatewayFixture(t)

	// Enrichment has no registered queue or worker in this fixture
	_, err := f.gateway.SubmitEnrichment(context.Background(), EnrichmentRequest{Domain: "example.com"})
	assert.Error(t, err, "no queue and no worker leaves nothing to run")
}

func TestPollUnknownReturnsPendingStub(t *testing.T) {
	f := newGatewayFixture(t)

	record, err := f.gateway.Poll(context.Background(), "job_never_seen")
	require.NoError(t, err, "polling a plausible job ID is never an error")
	assert.Equal(t, "job_never_seen", record.JobID)
	assert.Equal(t, models.StatusPending, record.Status)
}

func TestUpdateThresholdClamps(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	jobID, err := f.gateway.SubmitDiscovery(ctx, DiscoveryRequest{Domain: "example.com", Threshold: 80})
	require.NoError(t, err)

	record, err := f.gateway.UpdateThreshold(ctx, jobID, 10)
	require.NoError(t, err)
	assert.Equal(t, ThresholdMin, record.Threshold)

	record, err = f.gateway.UpdateThreshold(ctx, jobID, 999)
	require.NoError(t, err)
	assert.Equal(t, ThresholdMax, record.Threshold)

	record, err = f.gateway.UpdateThreshold(ctx, jobID, 85)
	require.NoError(t, err)
	assert.Equal(t, 85, record.Threshold)

	_, err = f.gateway.UpdateThreshold(ctx, "job_missing", 85)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestSubmitThenWorkerCompletesEndToEnd(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	jobID, err := f.gateway.SubmitDiscovery(ctx, DiscoveryRequest{
		Domain:    "example.com",
		Roles:     []string{"owner"},
		Threshold: 85,
		Limit:     5,
	})
	require.NoError(t, err)

	// Queue path: pending until a worker picks the message up
	record, err := f.gateway.Poll(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, record.Status)

	// Drive the worker the way the pool would
	require.Len(t, f.queue.enqueued, 1)
	msg := f.queue.enqueued[0]
	msg.Attempt = 1

	logger := arbor.NewLogger()
	executor := discovery.NewExecutor(
		[]interfaces.DiscoveryProvider{&fixedProvider{contacts: []models.Contact{
			{Email: "jane.doe@example.com", Domain: "example.com", Confidence: 72, Sources: []models.Source{{Provider: "pattern"}}},
		}}},
		verification.NewHeuristicVerifier(logger),
		logger,
	)
	worker := workers.NewDiscoveryWorker(executor, f.results, nil, logger)
	require.NoError(t, worker.Execute(ctx, &msg))

	record, err = f.gateway.Poll(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Equal(t, 85, record.Threshold)
	require.Len(t, record.Contacts, 1)
	assert.Equal(t, "jane.doe@example.com", record.Contacts[0].Email)
	assert.Equal(t, models.VerificationValid, record.Contacts[0].Verification.Status)
	assert.NotNil(t, record.FinishedAt)
}
