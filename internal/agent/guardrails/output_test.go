package guardrails

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputGuardrailBlocksWithoutEvidence(t *testing.T) {
	g := NewOutputGuardrail()

	for _, evidence := range [][]map[string]any{nil, {}} {
		v := g.Evaluate("Metformin lowers hepatic glucose output.", evidence)
		assert.Equal(t, StatusBlocked, v.Status)
		assert.Equal(t, CategoryHallucinationBlocked, v.Category)
		assert.Equal(t, BlockMessage(ReasonNoEvidence), v.Text())
		assert.Empty(t, v.SafeResponse)
	}
}

func TestOutputGuardrailAppendsDisclaimerOnce(t *testing.T) {
	g := NewOutputGuardrail()
	evidence := []map[string]any{{"query": "metformin"}}

	first := g.Evaluate("Metformin is a biguanide.", evidence)
	assert.True(t, first.Allowed())
	assert.Equal(t, "Metformin is a biguanide."+Disclaimer, first.SafeResponse)

	second := g.Evaluate(first.SafeResponse, evidence)
	assert.Equal(t, first.SafeResponse, second.SafeResponse)
	assert.Equal(t, 1, strings.Count(second.SafeResponse, DisclaimerMarker))
}

func TestOutputGuardrailKeepsExistingDisclaimer(t *testing.T) {
	draft := "Aspirin inhibits COX enzymes.\n\nDisclaimer: consult a doctor."
	v := NewOutputGuardrail().Evaluate(draft, []map[string]any{{"query": "aspirin"}})

	assert.Equal(t, draft, v.SafeResponse)
	assert.Equal(t, draft, v.Text())
}
