package guardrails

import "strings"

const (
	// DisclaimerMarker signals that disclaimer enforcement already ran.
	DisclaimerMarker = "Disclaimer"
	// Disclaimer is appended to answers that lack the marker.
	Disclaimer = "\n\n---\n⚠️ Disclaimer: This information is for educational purposes only and does not replace professional medical advice."
)

// OutputGuardrail checks a draft answer against the evidence gathered in the
// same turn. It makes no model call.
type OutputGuardrail struct{}

func NewOutputGuardrail() *OutputGuardrail {
	return &OutputGuardrail{}
}

// Evaluate blocks any draft when no evidence was retrieved and otherwise
// returns the draft with the disclaimer ensured.
func (g *OutputGuardrail) Evaluate(draft string, evidence []map[string]any) Verdict {
	if len(evidence) == 0 {
		return block(ReasonNoEvidence, CategoryHallucinationBlocked)
	}
	v := allow(CategoryNone)
	v.SafeResponse = EnsureDisclaimer(draft)
	return v
}

// EnsureDisclaimer appends Disclaimer unless the marker is already present.
func EnsureDisclaimer(text string) string {
	if strings.Contains(text, DisclaimerMarker) {
		return text
	}
	return text + Disclaimer
}
