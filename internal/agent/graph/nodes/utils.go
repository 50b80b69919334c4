package nodes

import (
	"github.com/cloudwego/eino/schema"
)

// sanitizeHistory keeps non-empty user and assistant messages only.
func sanitizeHistory(history []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m == nil || m.Content == "" {
			continue
		}
		if m.Role == schema.User || m.Role == schema.Assistant {
			out = append(out, &schema.Message{Role: m.Role, Content: m.Content})
		}
	}
	return out
}
