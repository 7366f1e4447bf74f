// Package discovery implements the contact discovery executor: a stateless
// computation that fans out to registered providers, deduplicates candidates,
// runs batch verification and returns a ranked contact list. The executor has
// no queue or storage knowledge; it is invoked by the queue workers and by the
// gateway's synchronous inline-fallback path, so it must be safely callable
// concurrently for the same domain.
package discovery

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// Request is the input to a discovery run.
type Request struct {
	Domain string
	Roles  []string
	Limit  int
}

// Executor runs the discovery pipeline. Providers are registered explicitly
// at construction; environment-driven provider selection belongs to the
// composition root, not here.
type Executor struct {
	providers []interfaces.DiscoveryProvider
	verifier  interfaces.EmailVerifier
	logger    arbor.ILogger
}

// NewExecutor creates an executor over the given providers and verifier. A
// nil verifier skips the verification step; zero providers yields an empty
// contact list, not an error.
func NewExecutor(providers []interfaces.DiscoveryProvider, verifier interfaces.EmailVerifier, logger arbor.ILogger) *Executor {
	return &Executor{
		providers: providers,
		verifier:  verifier,
		logger:    logger,
	}
}

// Discover produces a deduplicated, verified, ranked contact list for a
// domain. Providers run concurrently; a failed provider contributes zero
// candidates and is logged, never fatal for the run.
func (e *Executor) Discover(ctx context.Context, req Request) ([]models.Contact, error) {
	opts := interfaces.DiscoveryOptions{
		Roles: req.Roles,
		Limit: req.Limit,
	}

	var (
		mu         sync.Mutex
		candidates []models.Contact
		wg         sync.WaitGroup
	)

	for _, provider := range e.providers {
		wg.Add(1)
		go func(p interfaces.DiscoveryProvider) {
			defer wg.Done()

			found, err := p.Discover(ctx, req.Domain, opts)
			if err != nil {
				e.logger.Warn().
					Err(err).
					Str("provider", p.Name()).
					Str("domain", req.Domain).
					Msg("Discovery provider failed, excluding from results")
				return
			}

			mu.Lock()
			candidates = append(candidates, found...)
			mu.Unlock()
		}(provider)
	}
	wg.Wait()

	contacts := Dedupe(candidates)

	e.verify(ctx, contacts)

	// Verification score takes precedence over heuristic confidence when
	// present; ties sort by email for deterministic output.
	sort.SliceStable(contacts, func(i, j int) bool {
		si, sj := contacts[i].RankScore(), contacts[j].RankScore()
		if si != sj {
			return si > sj
		}
		return contacts[i].NormalizedEmail() < contacts[j].NormalizedEmail()
	})

	if req.Limit > 0 && len(contacts) > req.Limit {
		contacts = contacts[:req.Limit]
	}

	e.logger.Info().
		Str("domain", req.Domain).
		Int("providers", len(e.providers)).
		Int("candidates", len(candidates)).
		Int("contacts", len(contacts)).
		Msg("Discovery run complete")

	return contacts, nil
}

// verify runs the batch verification call and annotates contacts in place. A
// verifier failure leaves contacts with their unknown status; it never fails
// the run.
func (e *Executor) verify(ctx context.Context, contacts []models.Contact) {
	if e.verifier == nil || len(contacts) == 0 {
		return
	}

	emails := make([]string, len(contacts))
	for i := range contacts {
		emails[i] = contacts[i].Email
	}

	results, err := e.verifier.VerifyEmails(ctx, emails)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("verifier", e.verifier.Name()).
			Msg("Email verification failed, leaving contacts unverified")
		return
	}

	byEmail := make(map[string]models.Verification, len(results))
	for _, v := range results {
		byEmail[strings.ToLower(v.Email)] = v
	}

	for i := range contacts {
		if v, ok := byEmail[contacts[i].NormalizedEmail()]; ok {
			contacts[i].Verification = v
		}
	}
}

// Dedupe collapses candidates case-insensitively by email. On collision
// sources are merged (set union) and confidence is the max of the inputs;
// this is the canonical conflict-resolution rule.
func Dedupe(candidates []models.Contact) []models.Contact {
	index := make(map[string]int, len(candidates))
	contacts := make([]models.Contact, 0, len(candidates))

	for _, c := range candidates {
		key := c.NormalizedEmail()
		if key == "" {
			continue
		}

		if i, seen := index[key]; seen {
			models.MergeContact(&contacts[i], &c)
			continue
		}

		if c.Verification.Status == "" {
			c.Verification.Status = models.VerificationUnknown
		}
		c.ID = models.ContactID(c.Email, 0)
		index[key] = len(contacts)
		contacts = append(contacts, c)
	}

	return contacts
}
