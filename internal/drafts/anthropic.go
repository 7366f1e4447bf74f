// Package drafts generates outreach drafts for discovered contacts. The
// model choice is behind the DraftModel interface: an Anthropic-backed
// implementation when an API key is configured, a deterministic template
// otherwise.
package drafts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

const defaultModel = "claude-sonnet-4-5"

// AnthropicModel generates drafts with the Anthropic messages API.
type AnthropicModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewAnthropicModel creates the Anthropic-backed draft model.
func NewAnthropicModel(config *common.DraftsConfig, logger arbor.ILogger) (*AnthropicModel, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic draft model requires an API key")
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Info().
		Str("model", model).
		Msg("Anthropic draft model initialized")

	return &AnthropicModel{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   60 * time.Second,
		logger:    logger,
	}, nil
}

// Name returns the model name for logging and provenance.
func (m *AnthropicModel) Name() string {
	return "anthropic"
}

// GenerateDraft produces a short outreach email for the contact.
func (m *AnthropicModel) GenerateDraft(ctx context.Context, input interfaces.DraftInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	prompt := buildPrompt(input)

	message, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(m.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("draft generation failed: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	draft := strings.TrimSpace(b.String())
	if draft == "" {
		return "", fmt.Errorf("draft generation returned empty content")
	}

	return draft, nil
}

func buildPrompt(input interfaces.DraftInput) string {
	var b strings.Builder
	b.WriteString("Write a short, specific cold outreach email.\n")
	fmt.Fprintf(&b, "Recipient: %s %s", input.Contact.FirstName, input.Contact.LastName)
	if input.Contact.Role != "" {
		fmt.Fprintf(&b, " (%s)", input.Contact.Role)
	}
	fmt.Fprintf(&b, " at %s.\n", input.Domain)
	if input.Brief != "" {
		fmt.Fprintf(&b, "Sender context: %s\n", input.Brief)
	}
	b.WriteString("Keep it under 120 words. No placeholders.")
	return b.String()
}
