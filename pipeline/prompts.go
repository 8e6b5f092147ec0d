package pipeline

import (
	"fmt"
	"strings"

	"github.com/notewell/inference"
)

const (
	safetyMaxTokens     = 1024
	assessmentMaxTokens = 4096

	// safetyTemperature keeps the screening step deterministic.
	safetyTemperature = 0.1
)

const safetySystem = `You are a clinical safety screener. Review the ` +
	`consultation note for red flags: acute deterioration, suicide or ` +
	`self-harm risk, sepsis indicators, medication interactions, or any ` +
	`finding requiring immediate escalation. Respond with a JSON object ` +
	`only: {"risk_level": "LOW"|"MODERATE"|"HIGH"|"CRITICAL", ` +
	`"concerns": ["..."]}.`

const clinicalSystem = `You are an experienced clinician writing a ` +
	`structured assessment of a consultation note. Summarize the ` +
	`presentation, interpret findings, and suggest next steps. Flag ` +
	`uncertainty explicitly.`

const differentialSystem = `You are an experienced clinician. Produce a ` +
	`ranked differential diagnosis for this presentation, with the ` +
	`evidence for and against each candidate.`

const letterSystem = `You are a clinician writing a referral letter to ` +
	`a specialist colleague about this patient. Be concise and formal; ` +
	`include only clinically relevant detail.`

const synthesisSystem = `You are a senior clinician. Combine the safety ` +
	`screening and the individual assessments below into one coherent ` +
	`summary for the treating practitioner. Resolve disagreements ` +
	`explicitly rather than averaging them.`

// formatNote renders the structured note and patient context as prompt
// text.
func formatNote(in NoteInput) string {
	var b strings.Builder
	if in.PatientName != "" {
		fmt.Fprintf(&b, "Patient: %s", in.PatientName)
		if in.PatientAge > 0 {
			fmt.Fprintf(&b, ", age %d", in.PatientAge)
		}
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Subjective:\n%s\n\n", in.Subjective)
	fmt.Fprintf(&b, "Objective:\n%s\n\n", in.Objective)
	fmt.Fprintf(&b, "Assessment:\n%s\n\n", in.Assessment)
	fmt.Fprintf(&b, "Plan:\n%s\n", in.Plan)
	return b.String()
}

// safetyRequest builds the screening request. Low creativity, small
// output budget.
func safetyRequest(in NoteInput, orgID string) inference.Request {
	temp := safetyTemperature
	return inference.Request{
		Prompt:      formatNote(in),
		System:      safetySystem,
		Task:        inference.TaskSafety,
		MaxTokens:   safetyMaxTokens,
		Temperature: &temp,
		OrgID:       orgID,
	}
}

// assessmentRequest builds one assessment request. The safety findings
// are appended so the assessment can address flagged concerns.
func assessmentRequest(kind StepName, in NoteInput, safety SafetyAssessment, orgID string) inference.Request {
	var system string
	var task inference.Task
	switch kind {
	case StepDifferential:
		system, task = differentialSystem, inference.TaskDifferential
	case StepLetter:
		system, task = letterSystem, inference.TaskLetter
	default:
		system, task = clinicalSystem, inference.TaskClinical
	}

	var b strings.Builder
	b.WriteString(formatNote(in))
	if len(safety.Concerns) > 0 {
		fmt.Fprintf(&b, "\nSafety screening (%s) flagged:\n", safety.Risk)
		for _, c := range safety.Concerns {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	return inference.Request{
		Prompt:    b.String(),
		System:    system,
		Task:      task,
		MaxTokens: assessmentMaxTokens,
		OrgID:     orgID,
	}
}

// synthesisRequest combines the safety assessment and every successful
// assessment text into one prompt.
func synthesisRequest(res *RunResult, orgID string) inference.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Safety screening: %s\n", res.Safety.Risk)
	for _, c := range res.Safety.Concerns {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	for _, a := range res.assessments() {
		fmt.Fprintf(&b, "\n## %s\n%s\n", a.name, a.text)
	}

	return inference.Request{
		Prompt:    b.String(),
		System:    synthesisSystem,
		Task:      inference.TaskSynthesis,
		MaxTokens: assessmentMaxTokens,
		OrgID:     orgID,
	}
}
