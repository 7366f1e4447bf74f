package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// rolePrefixes maps requested role labels to the mailbox prefixes that
// conventionally reach them. Unknown roles fall back to a slugged prefix.
var rolePrefixes = map[string][]string{
	"owner/gm":  {"owner", "gm"},
	"owner":     {"owner"},
	"founder":   {"founder", "founders"},
	"ceo":       {"ceo"},
	"marketing": {"marketing", "growth"},
	"sales":     {"sales", "bd"},
	"support":   {"support", "help"},
	"hr":        {"hr", "people", "careers"},
}

// genericPrefixes are probed for every domain regardless of requested roles.
var genericPrefixes = []string{"info", "contact", "hello"}

// baseline confidence per pattern kind.
const (
	confidenceRolePrefix    = 62
	confidenceGenericPrefix = 55
)

// PatternProvider generates heuristic email-pattern candidates for a domain:
// role-based mailbox prefixes with a baseline confidence score. It is the
// interchangeable stand-in for a third-party discovery API and holds no
// mutable state, so concurrent runs are safe.
type PatternProvider struct{}

// NewPatternProvider creates the heuristic pattern provider.
func NewPatternProvider() *PatternProvider {
	return &PatternProvider{}
}

// Name returns the provider name used in source provenance.
func (p *PatternProvider) Name() string {
	return "pattern"
}

// Discover emits role-prefix candidates for the requested roles plus the
// generic prefixes every domain gets.
func (p *PatternProvider) Discover(ctx context.Context, domain string, opts interfaces.DiscoveryOptions) ([]models.Contact, error) {
	if domain == "" {
		return nil, fmt.Errorf("pattern provider requires a domain")
	}

	var contacts []models.Contact
	seen := make(map[string]bool)

	emit := func(prefix, role string, confidence int) {
		email := prefix + "@" + domain
		if seen[email] {
			return
		}
		seen[email] = true
		contacts = append(contacts, models.Contact{
			Email:      email,
			Role:       role,
			Domain:     domain,
			Pattern:    "role-prefix",
			Confidence: confidence,
			Sources: []models.Source{
				{Provider: p.Name(), Notes: "heuristic mailbox prefix"},
			},
		})
	}

	for _, role := range opts.Roles {
		prefixes, ok := rolePrefixes[strings.ToLower(strings.TrimSpace(role))]
		if !ok {
			prefixes = []string{slugPrefix(role)}
		}
		for _, prefix := range prefixes {
			emit(prefix, role, confidenceRolePrefix)
		}
	}

	for _, prefix := range genericPrefixes {
		emit(prefix, "", confidenceGenericPrefix)
	}

	if opts.Limit > 0 && len(contacts) > opts.Limit {
		contacts = contacts[:opts.Limit]
	}

	return contacts, nil
}

// slugPrefix reduces an arbitrary role label to a plausible mailbox prefix,
// e.g. "Head of Sales" -> "headofsales".
func slugPrefix(role string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(role) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "info"
	}
	return b.String()
}
