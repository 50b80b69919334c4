package guardrails

import (
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
	"github.com/MedBuddy-core-poc-v1/server/pkg/metrics"
)

const (
	StageInput  = "input"
	StageOutput = "output"
)

// Record counts a verdict and logs it when it is not an allow.
func Record(stage string, v Verdict) {
	metrics.GuardrailVerdicts.WithLabelValues(stage, string(v.Status), string(v.Category)).Inc()
	if !v.Allowed() {
		logx.Info().Str("stage", stage).Str("status", string(v.Status)).Str("category", string(v.Category)).Msg("guardrail intervened")
	}
}
