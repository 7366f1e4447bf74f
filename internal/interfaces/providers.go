package interfaces

import (
	"context"

	"github.com/ternarybob/venator/internal/models"
)

// DiscoveryOptions narrow a provider lookup.
type DiscoveryOptions struct {
	Roles []string
	Limit int
}

// DiscoveryProvider is a pluggable source of candidate contacts for a domain.
// Providers must not share mutable state; the executor fans out to all
// registered providers concurrently and a failed provider contributes zero
// candidates rather than failing the job.
type DiscoveryProvider interface {
	Name() string
	Discover(ctx context.Context, domain string, opts DiscoveryOptions) ([]models.Contact, error)
}

// EmailVerifier annotates a batch of email addresses with verification
// results. The executor calls it once over the deduplicated contact set.
type EmailVerifier interface {
	Name() string
	VerifyEmails(ctx context.Context, emails []string) ([]models.Verification, error)
}

// DraftInput is the material the draft generator works from.
type DraftInput struct {
	Contact models.Contact
	Domain  string
	Brief   string
}

// DraftModel generates an outreach draft for a contact. Prompt content and
// model choice live behind this interface.
type DraftModel interface {
	Name() string
	GenerateDraft(ctx context.Context, input DraftInput) (string, error)
}
