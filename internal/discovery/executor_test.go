package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

type stubProvider struct {
	name     string
	contacts []models.Contact
	err      error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Discover(ctx context.Context, domain string, opts interfaces.DiscoveryOptions) ([]models.Contact, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.contacts, nil
}

type stubVerifier struct {
	scores map[string]int
	err    error
}

func (v *stubVerifier) Name() string { return "stub" }

func (v *stubVerifier) VerifyEmails(ctx context.Context, emails []string) ([]models.Verification, error) {
	if v.err != nil {
		return nil, v.err
	}
	out := make([]models.Verification, 0, len(emails))
	for _, email := range emails {
		score := v.scores[email]
		s := score
		out = append(out, models.Verification{
			Email:  email,
			Status: models.VerificationValid,
			Score:  &s,
		})
	}
	return out, nil
}

func contact(email string, confidence int, provider string) models.Contact {
	return models.Contact{
		Email:      email,
		Domain:     "example.com",
		Confidence: confidence,
		Sources:    []models.Source{{Provider: provider}},
	}
}

func TestDiscoverDeduplicatesAcrossProviders(t *testing.T) {
	p1 := &stubProvider{name: "pattern", contacts: []models.Contact{
		contact("owner@example.com", 62, "pattern"),
		contact("info@example.com", 55, "pattern"),
	}}
	p2 := &stubProvider{name: "teampage", contacts: []models.Contact{
		contact("OWNER@example.com", 72, "teampage"),
	}}

	e := NewExecutor([]interfaces.DiscoveryProvider{p1, p2}, nil, arbor.NewLogger())

	contacts, err := e.Discover(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err)
	require.Len(t, contacts, 2, "same address from two providers collapses to one contact")

	var owner *models.Contact
	for i := range contacts {
		if contacts[i].NormalizedEmail() == "owner@example.com" {
			owner = &contacts[i]
		}
	}
	require.NotNil(t, owner)
	assert.Equal(t, 72, owner.Confidence, "max confidence wins on merge")
	assert.Len(t, owner.Sources, 2, "sources from both providers are kept")
	assert.NotEmpty(t, owner.ID)
}

func TestDiscoverFailedProviderExcluded(t *testing.T) {
	good := &stubProvider{name: "pattern", contacts: []models.Contact{
		contact("owner@example.com", 62, "pattern"),
	}}
	bad := &stubProvider{name: "teampage", err: errors.New("connection refused")}

	e := NewExecutor([]interfaces.DiscoveryProvider{good, bad}, nil, arbor.NewLogger())

	contacts, err := e.Discover(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err, "a failed provider never fails the run")
	assert.Len(t, contacts, 1)
}

func TestDiscoverZeroProviders(t *testing.T) {
	e := NewExecutor(nil, nil, arbor.NewLogger())

	contacts, err := e.Discover(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestDiscoverRanksByVerificationScore(t *testing.T) {
	p := &stubProvider{name: "pattern", contacts: []models.Contact{
		contact("low@example.com", 90, "pattern"),
		contact("high@example.com", 50, "pattern"),
	}}
	v := &stubVerifier{scores: map[string]int{
		"low@example.com":  40,
		"high@example.com": 95,
	}}

	e := NewExecutor([]interfaces.DiscoveryProvider{p}, v, arbor.NewLogger())

	contacts, err := e.Discover(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "high@example.com", contacts[0].Email, "verification score outranks heuristic confidence")
}

func TestDiscoverVerifierFailureLeavesContactsUnverified(t *testing.T) {
	p := &stubProvider{name: "pattern", contacts: []models.Contact{
		contact("owner@example.com", 62, "pattern"),
	}}
	v := &stubVerifier{err: errors.New("verifier down")}

	e := NewExecutor([]interfaces.DiscoveryProvider{p}, v, arbor.NewLogger())

	contacts, err := e.Discover(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, models.VerificationUnknown, contacts[0].Verification.Status)
}

func TestDiscoverTruncatesToLimit(t *testing.T) {
	p := &stubProvider{name: "pattern", contacts: []models.Contact{
		contact("a@example.com", 90, "pattern"),
		contact("b@example.com", 80, "pattern"),
		contact("c@example.com", 70, "pattern"),
	}}

	e := NewExecutor([]interfaces.DiscoveryProvider{p}, nil, arbor.NewLogger())

	contacts, err := e.Discover(context.Background(), Request{Domain: "example.com", Limit: 2})
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "a@example.com", contacts[0].Email, "truncation keeps the highest ranked")
}

func TestDiscoverIsIdempotent(t *testing.T) {
	p := &stubProvider{name: "pattern", contacts: []models.Contact{
		contact("owner@example.com", 62, "pattern"),
		contact("info@example.com", 55, "pattern"),
	}}
	e := NewExecutor([]interfaces.DiscoveryProvider{p}, nil, arbor.NewLogger())

	first, err := e.Discover(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err)
	second, err := e.Discover(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-running the same request yields the same contacts")
}

func TestDedupeSkipsEmptyEmails(t *testing.T) {
	contacts := Dedupe([]models.Contact{
		{Email: ""},
		contact("owner@example.com", 62, "pattern"),
	})
	assert.Len(t, contacts, 1)
}
