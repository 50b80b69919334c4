package guardrails

import "fmt"

type Status string

const (
	StatusAllowed       Status = "allowed"
	StatusBlocked       Status = "blocked"
	StatusClarification Status = "clarification_required"
)

type Category string

const (
	CategoryNone                    Category = ""
	CategoryGreeting                Category = "greeting"
	CategoryPromptInjection         Category = "prompt_injection"
	CategoryCreativeMedicalConflict Category = "creative_medical_conflict"
	CategoryOutOfScope              Category = "out_of_scope"
	CategoryDiagnosisBlocked        Category = "diagnosis_blocked"
	CategoryPatientSpecific         Category = "patient_specific"
	CategoryHallucinationBlocked    Category = "hallucination_blocked"
)

// Verdict is the outcome of one guardrail evaluation.
type Verdict struct {
	Status   Status   `json:"status"`
	Category Category `json:"category,omitempty"`
	Message  string   `json:"message,omitempty"`
	// SafeResponse is the possibly repaired answer of an allowed output check.
	SafeResponse string `json:"safe_response,omitempty"`
}

// Allowed reports whether the verdict lets the request or answer through.
func (v Verdict) Allowed() bool {
	return v.Status == StatusAllowed
}

// Text is what the caller shows to the user for this verdict.
func (v Verdict) Text() string {
	if v.Status == StatusAllowed && v.SafeResponse != "" {
		return v.SafeResponse
	}
	return v.Message
}

const (
	ReasonPromptInjection = "Prompt injection attempt detected."
	ReasonCreative        = "Creative or entertainment-style requests involving medicines are not allowed."
	ReasonOutOfScope      = "Non-medical query detected."
	ReasonDiagnosis       = "Diagnosis requests are not permitted."
	ReasonNoEvidence      = "No verified medical data was retrieved to support this response."

	ClarifyMessage = "Please consult a qualified doctor. I can only provide general medical information."
)

// BlockMessage renders the user-facing refusal for a reason.
func BlockMessage(reason string) string {
	return fmt.Sprintf("⚠️ I can’t help with this request.\n\nReason: %s\n\nThis assistant provides factual, professional medical information only.", reason)
}

func block(reason string, category Category) Verdict {
	return Verdict{Status: StatusBlocked, Category: category, Message: BlockMessage(reason)}
}

func clarify(message string) Verdict {
	return Verdict{Status: StatusClarification, Category: CategoryPatientSpecific, Message: message}
}

func allow(category Category) Verdict {
	return Verdict{Status: StatusAllowed, Category: category}
}
