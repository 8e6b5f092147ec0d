package pipeline

import "time"

// NoteInput is the structured clinical note a run is built from. The
// pipeline only formats prompts from it; validation and persistence
// belong to the calling layer.
type NoteInput struct {
	Subjective string
	Objective  string
	Assessment string
	Plan       string

	PatientName string
	PatientAge  int
}

// StepName is the fixed vocabulary of pipeline steps.
type StepName string

const (
	StepSafety       StepName = "safety"
	StepClinical     StepName = "clinical"
	StepDifferential StepName = "differential"
	StepLetter       StepName = "letter"
	StepSynthesis    StepName = "synthesis"
)

// StepStatus is the terminal status of one step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// Step is one record in a run's execution trace. Steps are append-only
// and ordered by completion, not by start.
type Step struct {
	Name     StepName
	Status   StepStatus
	Backend  string // backend identifier, set when completed
	Err      string // error message, set when failed
	Duration time.Duration
}

// RunResult is the aggregate returned to the caller. It is constructed
// fresh per invocation and never mutated after return.
type RunResult struct {
	ID string

	Halted     bool
	HaltReason string // present iff Halted

	Safety SafetyAssessment

	Clinical     string
	Differential string
	Letter       string
	Synthesis    string

	Steps   []Step
	Elapsed time.Duration
}

// setAssessment stores a successful assessment text under its step name.
func (r *RunResult) setAssessment(name StepName, text string) {
	switch name {
	case StepClinical:
		r.Clinical = text
	case StepDifferential:
		r.Differential = text
	case StepLetter:
		r.Letter = text
	}
}

// assessments returns the successful assessment texts keyed by step
// name, in the fixed step order.
func (r *RunResult) assessments() []namedText {
	var out []namedText
	if r.Clinical != "" {
		out = append(out, namedText{StepClinical, r.Clinical})
	}
	if r.Differential != "" {
		out = append(out, namedText{StepDifferential, r.Differential})
	}
	if r.Letter != "" {
		out = append(out, namedText{StepLetter, r.Letter})
	}
	return out
}

type namedText struct {
	name StepName
	text string
}
