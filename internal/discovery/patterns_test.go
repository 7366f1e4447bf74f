package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venator/internal/interfaces"
)

func TestPatternProviderEmitsRoleAndGenericPrefixes(t *testing.T) {
	p := NewPatternProvider()

	contacts, err := p.Discover(context.Background(), "example.com", interfaces.DiscoveryOptions{
		Roles: []string{"owner/gm"},
	})
	require.NoError(t, err)

	emails := make(map[string]bool, len(contacts))
	for _, c := range contacts {
		emails[c.Email] = true
	}

	assert.True(t, emails["owner@example.com"])
	assert.True(t, emails["gm@example.com"])
	assert.True(t, emails["info@example.com"], "generic prefixes come along for every domain")
	assert.True(t, emails["hello@example.com"])
}

func TestPatternProviderUnknownRoleSlugs(t *testing.T) {
	p := NewPatternProvider()

	contacts, err := p.Discover(context.Background(), "example.com", interfaces.DiscoveryOptions{
		Roles: []string{"Head of Sales"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, contacts)
	assert.Equal(t, "headofsales@example.com", contacts[0].Email)
	assert.Equal(t, "Head of Sales", contacts[0].Role)
}

func TestPatternProviderRequiresDomain(t *testing.T) {
	p := NewPatternProvider()
	_, err := p.Discover(context.Background(), "", interfaces.DiscoveryOptions{})
	assert.Error(t, err)
}

func TestPatternProviderRespectsLimit(t *testing.T) {
	p := NewPatternProvider()

	contacts, err := p.Discover(context.Background(), "example.com", interfaces.DiscoveryOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, contacts, 2)
}
