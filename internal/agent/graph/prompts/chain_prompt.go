package prompts

import (
	_ "embed"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Template variable keys shared by the chain prompts.
const (
	VarContext = "context"
	VarQuery   = "query"
	VarHistory = "history"
)

//go:embed template/doctor_system.txt
var doctorSystemPrompt string

//go:embed template/doctor_user.txt
var doctorUserPrompt string

//go:embed template/patient_system.txt
var patientSystemPrompt string

//go:embed template/patient_user.txt
var patientUserPrompt string

// DoctorTemplate renders system + history + doctor query. It expects
// VarContext, VarQuery and an optional VarHistory of []*schema.Message.
func DoctorTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(doctorSystemPrompt),
		schema.MessagesPlaceholder(VarHistory, true),
		schema.UserMessage(doctorUserPrompt),
	)
}

// PatientTemplate renders the stateless patient prompt from VarContext and VarQuery.
func PatientTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(patientSystemPrompt),
		schema.UserMessage(patientUserPrompt),
	)
}
