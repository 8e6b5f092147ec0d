package inference

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrGeneration indicates a backend-reported failure (rate limit,
	// malformed response, timeout).
	ErrGeneration = errors.New("generation failed")

	// ErrBudgetExceeded indicates admission control denied a metered call.
	ErrBudgetExceeded = errors.New("budget exceeded")
)
