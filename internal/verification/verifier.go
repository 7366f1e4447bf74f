// Package verification annotates email addresses with deliverability
// verdicts. The heuristic verifier is the in-process stand-in for a paid
// verification API; it scores syntax and mailbox-prefix signals
// deterministically so discovery results are reproducible.
package verification

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/models"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// roleAccounts are shared mailboxes: deliverable but risky for outreach.
var roleAccounts = map[string]bool{
	"info": true, "contact": true, "hello": true, "support": true,
	"help": true, "sales": true, "admin": true, "office": true,
	"careers": true, "hr": true,
}

// HeuristicVerifier is a deterministic batch verifier.
type HeuristicVerifier struct {
	logger arbor.ILogger
}

// NewHeuristicVerifier creates the heuristic verifier.
func NewHeuristicVerifier(logger arbor.ILogger) *HeuristicVerifier {
	return &HeuristicVerifier{logger: logger}
}

// Name returns the verifier name recorded on verification annotations.
func (v *HeuristicVerifier) Name() string {
	return "heuristic"
}

// VerifyEmails scores a batch of addresses. The result slice carries one
// entry per input email, in input order.
func (v *HeuristicVerifier) VerifyEmails(ctx context.Context, emails []string) ([]models.Verification, error) {
	results := make([]models.Verification, 0, len(emails))
	now := time.Now()

	for _, email := range emails {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		score, status := v.scoreEmail(email)
		results = append(results, models.Verification{
			Email:      email,
			Status:     status,
			Score:      &score,
			Provider:   v.Name(),
			VerifiedAt: &now,
		})
	}

	v.logger.Debug().
		Int("emails", len(emails)).
		Msg("Batch verification complete")

	return results, nil
}

func (v *HeuristicVerifier) scoreEmail(email string) (int, string) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	if !emailPattern.MatchString(normalized) {
		return 0, models.VerificationInvalid
	}

	local := normalized[:strings.Index(normalized, "@")]

	switch {
	case roleAccounts[local]:
		// Shared mailboxes accept mail but rarely convert
		return 68, models.VerificationRisky
	case strings.Contains(local, "."):
		// first.last shape is the strongest personal-mailbox signal
		return 88, models.VerificationValid
	case len(local) <= 2:
		return 45, models.VerificationRisky
	default:
		return 75, models.VerificationValid
	}
}
