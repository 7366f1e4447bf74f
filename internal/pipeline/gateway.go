// Package pipeline implements the submission/polling gateway: the single
// entry point that turns a validated request into a tracked job. The gateway
// seeds a pending result record before enqueueing so a fast poller never
// observes "not found", and when the queue transport refuses the enqueue it
// executes the job inline and writes the terminal record itself.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

const (
	// Threshold is clamped into this band; values outside it come from
	// clients poking at the API and would make verification meaningless.
	ThresholdMin = 70
	ThresholdMax = 95
)

// DiscoveryRequest is the inbound submission shape.
type DiscoveryRequest struct {
	Domain    string   `json:"domain" validate:"required"`
	Roles     []string `json:"roles,omitempty" validate:"omitempty,dive,min=1"`
	Threshold int      `json:"threshold,omitempty" validate:"omitempty,min=0,max=100"`
	Limit     int      `json:"limit,omitempty" validate:"omitempty,min=0,max=100"`
	Priority  int      `json:"priority,omitempty" validate:"omitempty,min=0,max=9"`
	Brief     string   `json:"brief,omitempty"`
}

// VerificationRequest asks for standalone verification of explicit emails.
type VerificationRequest struct {
	Domain string   `json:"domain,omitempty"`
	Emails []string `json:"emails" validate:"required,min=1,dive,email"`
}

// EnrichmentRequest re-runs discovery and merges into an earlier result.
type EnrichmentRequest struct {
	Domain      string   `json:"domain" validate:"required"`
	SourceJobID string   `json:"source_job_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Limit       int      `json:"limit,omitempty" validate:"omitempty,min=0,max=100"`
}

// DraftRequest asks for an outreach draft for one contact.
type DraftRequest struct {
	Domain  string         `json:"domain" validate:"required"`
	Contact models.Contact `json:"contact" validate:"required"`
	Brief   string         `json:"brief,omitempty"`
}

// Gateway accepts submissions, seeds pending records and enqueues jobs.
// When enqueue fails it runs the matching worker inline under a local job ID,
// so callers always get a job ID and polling always converges to a terminal
// record.
type Gateway struct {
	queues   map[models.QueueName]interfaces.JobQueue
	workers  map[models.JobKind]interfaces.JobWorker
	results  interfaces.ResultStore
	events   interfaces.EventService
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewGateway(queues map[models.QueueName]interfaces.JobQueue, workers map[models.JobKind]interfaces.JobWorker, results interfaces.ResultStore, events interfaces.EventService, logger arbor.ILogger) *Gateway {
	return &Gateway{
		queues:   queues,
		workers:  workers,
		results:  results,
		events:   events,
		validate: validator.New(),
		logger:   logger,
	}
}

// SubmitDiscovery validates and submits a discovery job.
func (g *Gateway) SubmitDiscovery(ctx context.Context, req DiscoveryRequest) (string, error) {
	if err := g.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid discovery request: %w", err)
	}

	domain, err := common.NormalizeDomain(req.Domain)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", req.Domain, err)
	}

	threshold := 0
	if req.Threshold > 0 {
		threshold = ClampThreshold(req.Threshold)
	}

	return g.submit(ctx, domain, req.Priority, threshold, models.DiscoveryPayload{
		Domain:    domain,
		Roles:     req.Roles,
		Threshold: threshold,
		Limit:     req.Limit,
		Brief:     req.Brief,
	})
}

// SubmitVerification validates and submits an email-verification job.
func (g *Gateway) SubmitVerification(ctx context.Context, req VerificationRequest) (string, error) {
	if err := g.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid verification request: %w", err)
	}

	return g.submit(ctx, req.Domain, 0, 0, models.VerificationPayload{
		Domain: req.Domain,
		Emails: req.Emails,
	})
}

// SubmitEnrichment validates and submits a contact-enrichment job.
func (g *Gateway) SubmitEnrichment(ctx context.Context, req EnrichmentRequest) (string, error) {
	if err := g.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid enrichment request: %w", err)
	}

	domain, err := common.NormalizeDomain(req.Domain)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", req.Domain, err)
	}

	return g.submit(ctx, domain, 0, 0, models.EnrichmentPayload{
		Domain:      domain,
		SourceJobID: req.SourceJobID,
		Roles:       req.Roles,
		Limit:       req.Limit,
	})
}

// SubmitDraft validates and submits a draft-generation job.
func (g *Gateway) SubmitDraft(ctx context.Context, req DraftRequest) (string, error) {
	if err := g.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid draft request: %w", err)
	}
	if req.Contact.Email == "" {
		return "", fmt.Errorf("invalid draft request: contact email is required")
	}

	domain, err := common.NormalizeDomain(req.Domain)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", req.Domain, err)
	}

	return g.submit(ctx, domain, 0, 0, models.DraftPayload{
		Domain:  domain,
		Contact: req.Contact,
		Brief:   req.Brief,
	})
}

// submit seeds the pending record, enqueues the job, and falls back to
// inline execution when the transport refuses the write. Seeding happens
// before enqueue so an immediate poll never misses the record.
func (g *Gateway) submit(ctx context.Context, domain string, priority, threshold int, payload models.JobPayload) (string, error) {
	queueName := models.QueueFor(payload.Kind())
	queue, ok := g.queues[queueName]
	if !ok {
		// No transport registered at all; go straight to the inline path.
		return g.runInline(ctx, domain, threshold, payload)
	}

	jobID := common.NewJobID()
	if err := g.seed(ctx, jobID, domain, threshold); err != nil {
		return "", err
	}

	msg := models.JobMessage{
		ID:        jobID,
		Queue:     queueName,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	if _, err := queue.Enqueue(ctx, msg); err != nil {
		g.logger.Warn().
			Err(err).
			Str("queue", string(queueName)).
			Str("job_id", jobID).
			Msg("Enqueue failed, executing inline")
		// The seeded record now has no job behind it; evict it so the
		// inline job ID is the only one the caller can poll.
		_ = g.results.Delete(ctx, jobID)
		return g.runInline(ctx, domain, threshold, payload)
	}

	g.publishSubmitted(ctx, jobID, queueName, domain)

	g.logger.Info().
		Str("job_id", jobID).
		Str("queue", string(queueName)).
		Str("domain", domain).
		Msg("Job submitted")
	return jobID, nil
}

// runInline executes the job synchronously under a locally synthesized job
// ID. The worker writes the terminal record itself; an execution error is
// already recorded as a failed record, so it is not surfaced to the caller.
func (g *Gateway) runInline(ctx context.Context, domain string, threshold int, payload models.JobPayload) (string, error) {
	worker, ok := g.workers[payload.Kind()]
	if !ok {
		return "", fmt.Errorf("no worker registered for %s jobs", payload.Kind())
	}

	jobID := common.NewInlineJobID()
	if err := g.seed(ctx, jobID, domain, threshold); err != nil {
		return "", err
	}

	g.publishSubmitted(ctx, jobID, models.QueueFor(payload.Kind()), domain)

	msg := &models.JobMessage{
		ID:        jobID,
		Queue:     models.QueueFor(payload.Kind()),
		Attempt:   1,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	if err := worker.Execute(ctx, msg); err != nil {
		g.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Msg("Inline execution failed")
	} else {
		g.logger.Info().
			Str("job_id", jobID).
			Str("domain", domain).
			Msg("Inline execution completed")
	}

	return jobID, nil
}

func (g *Gateway) seed(ctx context.Context, jobID, domain string, threshold int) error {
	record := models.PendingStub(jobID)
	record.Domain = domain
	record.Threshold = threshold
	if err := g.results.Seed(ctx, record); err != nil {
		return fmt.Errorf("failed to seed result record: %w", err)
	}
	return nil
}

func (g *Gateway) publishSubmitted(ctx context.Context, jobID string, queue models.QueueName, domain string) {
	if g.events == nil {
		return
	}
	_ = g.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventJobSubmitted,
		Payload: map[string]interface{}{
			"job_id": jobID,
			"queue":  string(queue),
			"domain": domain,
		},
	})
}

// Poll returns the current record for a job ID. An unknown ID yields a
// synthesized pending stub rather than an error, to tolerate the race
// between submission and the first poll.
func (g *Gateway) Poll(ctx context.Context, jobID string) (*models.ResultRecord, error) {
	record, err := g.results.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return models.PendingStub(jobID), nil
		}
		return nil, err
	}
	return record, nil
}

// UpdateThreshold clamps and applies a new confidence threshold to an
// existing record. Unlike Poll, a missing record is reported via
// ErrNotFound: there is nothing to patch.
func (g *Gateway) UpdateThreshold(ctx context.Context, jobID string, threshold int) (*models.ResultRecord, error) {
	clamped := ClampThreshold(threshold)
	return g.results.UpdateFields(ctx, jobID, models.FieldUpdate{Threshold: &clamped})
}

// ClampThreshold forces a threshold into the allowed band.
func ClampThreshold(threshold int) int {
	if threshold < ThresholdMin {
		return ThresholdMin
	}
	if threshold > ThresholdMax {
		return ThresholdMax
	}
	return threshold
}
