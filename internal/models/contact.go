package models

import (
	"fmt"
	"strings"
	"time"
)

// Contact is a discovered person record for a domain.
// Contacts are deduplicated case-insensitively by email: when two providers
// emit the same address, sources are merged and the higher confidence wins.
type Contact struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	FirstName    string       `json:"first_name,omitempty"`
	LastName     string       `json:"last_name,omitempty"`
	Role         string       `json:"role,omitempty"`
	Domain       string       `json:"domain"`
	Pattern      string       `json:"pattern"`    // Email construction heuristic that produced it (e.g. "first.last", "role-prefix")
	Confidence   int          `json:"confidence"` // 0-100
	Verification Verification `json:"verification"`
	Sources      []Source     `json:"sources"`
}

// Source records the provenance of a contact.
type Source struct {
	Provider string `json:"provider"`
	URL      string `json:"url,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Verification is the annotation produced by the email verification step.
type Verification struct {
	Email      string     `json:"email,omitempty"`
	Status     string     `json:"status"` // "valid", "risky", "invalid", "unknown"
	Score      *int       `json:"score,omitempty"`
	Provider   string     `json:"provider,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// Verification statuses.
const (
	VerificationValid   = "valid"
	VerificationRisky   = "risky"
	VerificationInvalid = "invalid"
	VerificationUnknown = "unknown"
)

// NormalizedEmail returns the dedup key for the contact.
func (c *Contact) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

// RankScore is the value contacts are sorted by: the verification score when
// present, otherwise the heuristic confidence.
func (c *Contact) RankScore() int {
	if c.Verification.Score != nil {
		return *c.Verification.Score
	}
	return c.Confidence
}

// ContactID derives a stable contact ID from an email plus an ordinal that
// disambiguates duplicate discovery events for the same address.
func ContactID(email string, ordinal int) string {
	key := strings.ToLower(strings.TrimSpace(email))
	key = strings.NewReplacer("@", "-at-", ".", "-").Replace(key)
	if ordinal > 0 {
		return fmt.Sprintf("contact_%s_%d", key, ordinal)
	}
	return "contact_" + key
}

// MergeContact folds b into a under the canonical conflict-resolution rule:
// sources are a set union (keyed by provider+URL) and confidence is the max of
// the two. Name, role and pattern fields are filled from b only when a is
// missing them.
func MergeContact(a, b *Contact) {
	if b.Confidence > a.Confidence {
		a.Confidence = b.Confidence
		a.Pattern = b.Pattern
	}
	if a.FirstName == "" {
		a.FirstName = b.FirstName
	}
	if a.LastName == "" {
		a.LastName = b.LastName
	}
	if a.Role == "" {
		a.Role = b.Role
	}

	seen := make(map[string]bool, len(a.Sources))
	for _, s := range a.Sources {
		seen[s.Provider+"|"+s.URL] = true
	}
	for _, s := range b.Sources {
		if !seen[s.Provider+"|"+s.URL] {
			a.Sources = append(a.Sources, s)
			seen[s.Provider+"|"+s.URL] = true
		}
	}
}
