package drafts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

func TestTemplateModelGenerateDraft(t *testing.T) {
	m := NewTemplateModel()

	draft, err := m.GenerateDraft(context.Background(), interfaces.DraftInput{
		Contact: models.Contact{FirstName: "Jane", Role: "Owner"},
		Domain:  "example.com",
		Brief:   "We sell espresso machines.",
	})
	require.NoError(t, err)
	assert.Contains(t, draft, "Hi Jane,")
	assert.Contains(t, draft, "example.com")
	assert.Contains(t, draft, "owner")
	assert.Contains(t, draft, "We sell espresso machines.")
}

func TestTemplateModelMissingName(t *testing.T) {
	m := NewTemplateModel()

	draft, err := m.GenerateDraft(context.Background(), interfaces.DraftInput{
		Contact: models.Contact{Email: "info@example.com"},
		Domain:  "example.com",
	})
	require.NoError(t, err)
	assert.Contains(t, draft, "Hi there,")
}

func TestTemplateModelRespectsCancellation(t *testing.T) {
	m := NewTemplateModel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.GenerateDraft(ctx, interfaces.DraftInput{Domain: "example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnthropicModelRequiresAPIKey(t *testing.T) {
	config := common.DraftsConfig{Provider: "anthropic"}
	_, err := NewAnthropicModel(&config, nil)
	assert.Error(t, err)
}
