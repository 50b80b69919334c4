package model

// DefaultProfessionalDisclaimer is used when the model leaves the disclaimer empty.
const DefaultProfessionalDisclaimer = "This information is for healthcare professional reference only. Always verify with current medical literature and use clinical judgment."

// DrugInteraction describes a drug-drug interaction.
type DrugInteraction struct {
	DrugsInvolved  []string `json:"drugs_involved"`
	Severity       string   `json:"severity"` // CRITICAL, MAJOR, MODERATE or MINOR
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

type ReimbursementInfo struct {
	CoverageStatus string `json:"coverage_status"`
	PriceRange     string `json:"price_range,omitempty"`
	Restrictions   string `json:"restrictions,omitempty"`
}

// SafetyWarning is a contraindication, warning, precaution or adverse effect.
type SafetyWarning struct {
	Category    string `json:"category"`
	Condition   string `json:"condition"`
	Description string `json:"description"`
}

type SourceReference struct {
	Database string `json:"database"`
	Snippet  string `json:"snippet"`
}

// MedicalResponse is the structured answer of the retrieval chain.
type MedicalResponse struct {
	Summary         string             `json:"summary"`
	DrugInformation string             `json:"drug_information,omitempty"`
	Interactions    []DrugInteraction  `json:"interactions"`
	Reimbursement   *ReimbursementInfo `json:"reimbursement,omitempty"`
	SafetyWarnings  []SafetyWarning    `json:"safety_warnings"`
	Recommendations string             `json:"recommendations,omitempty"`
	DataLimitations string             `json:"data_limitations,omitempty"`
	Sources         []SourceReference  `json:"sources"`
	Disclaimer      string             `json:"disclaimer"`
}

// Normalize replaces nil slices with empty ones and fills the default disclaimer.
func (r *MedicalResponse) Normalize() {
	if r.Interactions == nil {
		r.Interactions = []DrugInteraction{}
	}
	if r.SafetyWarnings == nil {
		r.SafetyWarnings = []SafetyWarning{}
	}
	if r.Sources == nil {
		r.Sources = []SourceReference{}
	}
	if r.Disclaimer == "" {
		r.Disclaimer = DefaultProfessionalDisclaimer
	}
}
