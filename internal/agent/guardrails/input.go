package guardrails

import "strings"

var defaultGreetings = []string{"hi", "hello", "hello doctor", "hi doctor"}

// InputGuardrail classifies a query before any model call. Checks run in a
// fixed order and the first match wins.
type InputGuardrail struct {
	patterns  *Patterns
	greetings map[string]struct{}
}

// NewInputGuardrail builds a guardrail over p; nil selects DefaultPatterns.
func NewInputGuardrail(p *Patterns) *InputGuardrail {
	if p == nil {
		p = DefaultPatterns()
	}
	g := &InputGuardrail{patterns: p, greetings: make(map[string]struct{}, len(defaultGreetings))}
	for _, s := range defaultGreetings {
		g.greetings[s] = struct{}{}
	}
	return g
}

// Evaluate never fails; any string yields a verdict.
func (g *InputGuardrail) Evaluate(query string) Verdict {
	q := strings.ToLower(strings.TrimSpace(query))

	if _, ok := g.greetings[q]; ok {
		return allow(CategoryGreeting)
	}
	if g.patterns.Injection.Match(q) {
		return block(ReasonPromptInjection, CategoryPromptInjection)
	}
	if g.creativeMedicalConflict(q) {
		return block(ReasonCreative, CategoryCreativeMedicalConflict)
	}
	if g.patterns.NonMedical.Match(q) {
		return block(ReasonOutOfScope, CategoryOutOfScope)
	}
	if g.patterns.Diagnosis.Match(q) {
		return block(ReasonDiagnosis, CategoryDiagnosisBlocked)
	}
	if g.patterns.PatientSpecific.Match(q) {
		return clarify(ClarifyMessage)
	}
	return allow(CategoryNone)
}

// creativeMedicalConflict requires both groups: creative styling and medical substance.
func (g *InputGuardrail) creativeMedicalConflict(q string) bool {
	creative := g.patterns.Creative.Match(q)
	medical := AnyOf(q, g.patterns.Medication, g.patterns.Disease)
	return creative && medical
}
