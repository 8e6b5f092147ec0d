package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSafety(t *testing.T) {
	t.Parallel()

	t.Run("structured JSON is the primary mechanism", func(t *testing.T) {
		t.Parallel()
		a := parseSafety(`{"risk_level": "MODERATE", "concerns": ["medication interaction"]}`)
		assert.Equal(t, RiskModerate, a.Risk)
		assert.Equal(t, []string{"medication interaction"}, a.Concerns)
		assert.True(t, a.MayProceed())
	})

	t.Run("JSON wrapped in prose and code fences", func(t *testing.T) {
		t.Parallel()
		a := parseSafety("Here is my assessment:\n```json\n" +
			`{"risk_level": "critical", "concerns": ["acute deterioration"]}` +
			"\n```\nLet me know if you need more.")
		assert.Equal(t, RiskCritical, a.Risk)
		assert.False(t, a.MayProceed())
	})

	t.Run("keyword scan is the fallback parser", func(t *testing.T) {
		t.Parallel()
		a := parseSafety("Overall this presentation is high risk and needs monitoring.")
		assert.Equal(t, RiskHigh, a.Risk)
		assert.Empty(t, a.Concerns)
	})

	t.Run("keyword priority is CRITICAL over HIGH over MODERATE", func(t *testing.T) {
		t.Parallel()
		a := parseSafety("moderate findings, high concern in places, overall CRITICAL")
		assert.Equal(t, RiskCritical, a.Risk)
	})

	t.Run("no keyword defaults to LOW", func(t *testing.T) {
		t.Parallel()
		a := parseSafety("nothing remarkable in this note")
		assert.Equal(t, RiskLow, a.Risk)
	})

	t.Run("malformed JSON falls back to scanning", func(t *testing.T) {
		t.Parallel()
		a := parseSafety(`{"risk_level": "HIGH", "concerns": [truncated`)
		assert.Equal(t, RiskHigh, a.Risk)
	})

	t.Run("JSON with unknown level falls back to scanning", func(t *testing.T) {
		t.Parallel()
		a := parseSafety(`{"risk_level": "SEVERE", "concerns": []} overall moderate risk`)
		assert.Equal(t, RiskModerate, a.Risk)
	})

	t.Run("raw text is preserved", func(t *testing.T) {
		t.Parallel()
		const text = "LOW risk, routine follow-up"
		assert.Equal(t, text, parseSafety(text).Raw)
	})
}

func TestSafetyAssessment_MayProceed(t *testing.T) {
	t.Parallel()

	// MayProceed is a pure function of risk level: false only at CRITICAL.
	for _, tt := range []struct {
		risk RiskLevel
		want bool
	}{
		{RiskUnknown, true},
		{RiskLow, true},
		{RiskModerate, true},
		{RiskHigh, true},
		{RiskCritical, false},
	} {
		assert.Equal(t, tt.want, SafetyAssessment{Risk: tt.risk}.MayProceed(), tt.risk.String())
	}
}

func TestRiskLevel_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "UNKNOWN", RiskUnknown.String())
	assert.Equal(t, "CRITICAL", RiskCritical.String())
}
