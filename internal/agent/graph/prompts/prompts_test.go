package prompts

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorTemplateIncludesHistoryAndContext(t *testing.T) {
	history := []*schema.Message{
		schema.UserMessage("What is metformin?"),
		schema.AssistantMessage("Metformin is a biguanide.", nil),
	}
	msgs, err := DoctorTemplate().Format(context.Background(), map[string]any{
		VarContext: "\n--- DRUG MASTER DATA ---\nMetformin lowers glucose.",
		VarQuery:   "What about its interactions?",
		VarHistory: history,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Metformin lowers glucose.")
	assert.Contains(t, msgs[0].Content, `"summary"`)
	assert.Equal(t, "What is metformin?", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, schema.User, msgs[3].Role)
	assert.Contains(t, msgs[3].Content, "What about its interactions?")
}

func TestDoctorTemplateWithoutHistory(t *testing.T) {
	msgs, err := DoctorTemplate().Format(context.Background(), map[string]any{
		VarContext: "ctx",
		VarQuery:   "q",
	})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestPatientTemplate(t *testing.T) {
	msgs, err := PatientTemplate().Format(context.Background(), map[string]any{
		VarContext: "Asthma narrows the airways.",
		VarQuery:   "What is asthma?",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "Asthma narrows the airways.")
	assert.Contains(t, msgs[1].Content, "What is asthma?")
}

func TestRenderRefine(t *testing.T) {
	msgs, err := RenderRefine(context.Background(), "and its side effects?", []*schema.Message{
		schema.UserMessage("tell me about metformin"),
		schema.ToolMessage("{}", "call_1"),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "user: tell me about metformin")
	assert.Contains(t, msgs[0].Content, `"and its side effects?"`)
	assert.NotContains(t, msgs[0].Content, "tool:")
}

func TestRenderAgentPrompts(t *testing.T) {
	sys, err := RenderAgentSystem(context.Background())
	require.NoError(t, err)
	assert.Contains(t, sys, "drug_information_retrieval")
	assert.Contains(t, sys, "reimbursement_navigator")

	user, err := RenderAgentUser(context.Background(), "Compare metformin and insulin")
	require.NoError(t, err)
	assert.Contains(t, user, "Doctor Query:\nCompare metformin and insulin")
}

func TestFormatHistory(t *testing.T) {
	got := FormatHistory([]*schema.Message{
		schema.UserMessage("a"),
		nil,
		schema.AssistantMessage("", nil),
		schema.AssistantMessage("b", nil),
	})
	assert.Equal(t, "user: a\nassistant: b", got)
}
