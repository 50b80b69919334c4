package model

import (
	"github.com/cloudwego/eino/schema"
)

// Mode selects how a query is answered.
type Mode string

const (
	// ModeDoctor is the multi-turn retrieval chain with a structured answer.
	ModeDoctor Mode = "doctor"
	// ModePatient is the stateless single-turn retrieval chain in plain language.
	ModePatient Mode = "patient"
	// ModeAgent is the multi-turn tool-calling loop.
	ModeAgent Mode = "agent"
)

// ParseMode reports whether v names a known mode.
func ParseMode(v string) (Mode, bool) {
	switch m := Mode(v); m {
	case ModeDoctor, ModePatient, ModeAgent:
		return m, true
	}
	return "", false
}

// ChainInput is the input of the retrieval chain graph.
type ChainInput struct {
	SessionID string
	Query     string
	History   []*schema.Message
}

// ChainOutput is the result of one retrieval chain run.
type ChainOutput struct {
	RefinedQuery string
	Response     *MedicalResponse
	// Evidence holds the documents retrieved for this turn, in merge order.
	Evidence     []*schema.Document
	TotalCostUSD float64
}

// ChainState stores per-invocation state for the retrieval chain graph.
// It is registered via compose.WithGenLocalState and only touched inside
// state handlers or compose.ProcessState.
type ChainState struct {
	SessionID    string
	Query        string
	History      []*schema.Message
	RefinedQuery string
	Evidence     []*schema.Document
	TotalCostUSD float64
}
