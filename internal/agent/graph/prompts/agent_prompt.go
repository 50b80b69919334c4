package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/tools"
)

//go:embed template/agent_system.txt
var agentSystemPrompt string

//go:embed template/agent_user.txt
var agentUserPrompt string

// RenderAgentSystem renders the tool-calling policy prompt.
func RenderAgentSystem(ctx context.Context) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(agentSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"DrugInfoTool":      tools.ToolDrugInformation,
		"ComparisonTool":    tools.ToolComparativeAnalysis,
		"InteractionTool":   tools.ToolInteractionChecker,
		"ReimbursementTool": tools.ToolReimbursementNavigator,
	})
	if err != nil {
		return "", fmt.Errorf("agent system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("agent system prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderAgentUser wraps the doctor's query with the answering instructions.
func RenderAgentUser(ctx context.Context, query string) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(agentUserPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{VarQuery: query})
	if err != nil {
		return "", fmt.Errorf("agent user prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("agent user prompt render: empty result")
	}
	return msgs[0].Content, nil
}
