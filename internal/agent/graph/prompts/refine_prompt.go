package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/refine.txt
var refinePrompt string

// RenderRefine builds the single user message sent to the refiner model.
func RenderRefine(ctx context.Context, query string, history []*schema.Message) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(refinePrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"chat_history": FormatHistory(history),
		"user_query":   query,
	})
	if err != nil {
		return nil, fmt.Errorf("refine prompt render: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("refine prompt render: empty result")
	}
	return msgs, nil
}

// FormatHistory renders user/assistant turns as "role: content" lines.
func FormatHistory(history []*schema.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case schema.User, schema.Assistant:
			lines = append(lines, string(m.Role)+": "+m.Content)
		}
	}
	return strings.Join(lines, "\n")
}
