package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestComputeCost(t *testing.T) {
	usage := &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 500_000, TotalTokens: 1_500_000}

	in, out, total := ComputeCost(usage, ResolvePricing("gemini-2.5-flash"))
	assert.InDelta(t, 0.30, in, 1e-9)
	assert.InDelta(t, 1.25, out, 1e-9)
	assert.InDelta(t, 1.55, total, 1e-9)

	_, _, total = ComputeCost(nil, ResolvePricing("gemini-2.5-flash"))
	assert.Zero(t, total)
}

func TestResolvePricing(t *testing.T) {
	assert.Equal(t, defaultPricing["gpt-4o-mini"], ResolvePricing("openai/gpt-4o-mini"))
	assert.Equal(t, Pricing{}, ResolvePricing("unknown-model"))
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("doctor")
	assert.True(t, ok)
	assert.Equal(t, ModeDoctor, m)

	_, ok = ParseMode("surgeon")
	assert.False(t, ok)

	_, ok = ParseMode("")
	assert.False(t, ok)
}

func TestMedicalResponseNormalize(t *testing.T) {
	r := &MedicalResponse{Summary: "s"}
	r.Normalize()
	assert.NotNil(t, r.Interactions)
	assert.NotNil(t, r.SafetyWarnings)
	assert.NotNil(t, r.Sources)
	assert.Equal(t, DefaultProfessionalDisclaimer, r.Disclaimer)

	r = &MedicalResponse{Disclaimer: "custom"}
	r.Normalize()
	assert.Equal(t, "custom", r.Disclaimer)
}
