package inference

import "fmt"

// Task tags a generation request with the pipeline step it serves.
// Backends may use it to select step-specific defaults.
type Task string

const (
	TaskSafety       Task = "safety"
	TaskClinical     Task = "clinical"
	TaskDifferential Task = "differential"
	TaskLetter       Task = "letter"
	TaskSynthesis    Task = "synthesis"
)

// Request carries a prompt and generation parameters. It is an
// immutable value: nothing owns a Request beyond the call that creates
// it. The backend uses its own defaults when fields are zero/nil.
type Request struct {
	Prompt      string
	System      string   // optional instruction text
	Task        Task     // "" = untagged
	MaxTokens   int      // 0 = backend default
	Temperature *float64 // nil = backend default
	OrgID       string   // organization the call is billed to
}

// Validate checks universal constraints on Request.
// Backend implementations may apply additional validation.
func (r Request) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt must not be empty: %w", ErrValidation)
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d: %w", r.MaxTokens, ErrValidation)
	}
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 2 {
			return fmt.Errorf("temperature must be in [0, 2], got %g: %w", *r.Temperature, ErrValidation)
		}
	}
	return nil
}
