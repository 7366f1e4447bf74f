package drafts

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/venator/internal/interfaces"
)

// TemplateModel renders drafts from a fixed template. It is the default
// when no Anthropic API key is configured, and keeps draft jobs
// deterministic in tests.
type TemplateModel struct{}

func NewTemplateModel() *TemplateModel {
	return &TemplateModel{}
}

func (m *TemplateModel) Name() string {
	return "template"
}

func (m *TemplateModel) GenerateDraft(ctx context.Context, input interfaces.DraftInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := strings.TrimSpace(input.Contact.FirstName)
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "I came across %s and wanted to reach out", input.Domain)
	if input.Contact.Role != "" {
		fmt.Fprintf(&b, " since you handle %s", strings.ToLower(input.Contact.Role))
	}
	b.WriteString(".\n\n")
	if input.Brief != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(input.Brief))
	}
	b.WriteString("Would you be open to a quick call this week?\n\nBest,\n")
	return b.String(), nil
}
