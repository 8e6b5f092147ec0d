package pipeline

import (
	"encoding/json"
	"strings"
)

// RiskLevel is the ordered set of safety screening outcomes.
// RiskUnknown is the zero value, used only as the fail-open substitute
// when the screening call itself fails.
type RiskLevel int

const (
	RiskUnknown RiskLevel = iota
	RiskLow
	RiskModerate
	RiskHigh
	RiskCritical
)

// String returns the screening keyword for the level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskModerate:
		return "MODERATE"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// SafetyAssessment is the value derived from the safety screening step.
type SafetyAssessment struct {
	Risk     RiskLevel
	Concerns []string
	Raw      string // backend text the assessment was derived from
}

// MayProceed reports whether the pipeline may continue past the safety
// gate. It is a pure function of the risk level: false only at
// CRITICAL.
func (a SafetyAssessment) MayProceed() bool {
	return a.Risk != RiskCritical
}

// safetyReply is the structured classification the safety prompt asks
// the backend to return.
type safetyReply struct {
	RiskLevel string   `json:"risk_level"`
	Concerns  []string `json:"concerns"`
}

// parseSafety derives a SafetyAssessment from backend text. The
// structured JSON classification is the primary mechanism; the keyword
// scan is a defensive fallback for backends that ignore the output
// format instruction.
func parseSafety(text string) SafetyAssessment {
	a := SafetyAssessment{Risk: RiskLow, Raw: text}

	if reply, ok := parseSafetyJSON(text); ok {
		if level, ok := riskFromKeyword(reply.RiskLevel); ok {
			a.Risk = level
			a.Concerns = reply.Concerns
			return a
		}
	}

	a.Risk = scanRisk(text)
	return a
}

// parseSafetyJSON extracts and decodes the first JSON object in the
// text. Backends often wrap JSON in prose or code fences.
func parseSafetyJSON(text string) (safetyReply, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return safetyReply{}, false
	}
	var reply safetyReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return safetyReply{}, false
	}
	return reply, true
}

// riskFromKeyword maps a classification keyword to its level.
func riskFromKeyword(s string) (RiskLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow, true
	case "MODERATE":
		return RiskModerate, true
	case "HIGH":
		return RiskHigh, true
	case "CRITICAL":
		return RiskCritical, true
	default:
		return RiskUnknown, false
	}
}

// scanRisk scans free text for risk keywords in fixed priority order:
// CRITICAL > HIGH > MODERATE, else LOW.
func scanRisk(text string) RiskLevel {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "CRITICAL"):
		return RiskCritical
	case strings.Contains(upper, "HIGH"):
		return RiskHigh
	case strings.Contains(upper, "MODERATE"):
		return RiskModerate
	default:
		return RiskLow
	}
}

// haltReason builds the human-readable reason attached to a halted run.
func haltReason(concerns []string) string {
	if len(concerns) == 0 {
		return "critical risk identified during safety screening"
	}
	return "critical risk identified during safety screening: " + strings.Join(concerns, "; ")
}
