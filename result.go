package inference

import "time"

// Usage tracks token consumption for a single backend call.
//
// Invariant across all backends:
//
//	InputTokens     = non-cached input tokens
//	OutputTokens    = generated tokens
//	CacheReadTokens = input tokens served from a prompt cache
//
// Total input tokens = InputTokens + CacheReadTokens. Backends
// normalize their API-specific fields to this invariant and clamp to
// zero when subtracting to guard against inconsistent upstream data.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}

// Result is the value returned by a backend. It is owned transiently by
// the caller and never persisted by this subsystem.
type Result struct {
	Text     string
	Backend  string // identifier of the backend that produced the text
	Duration time.Duration
	Usage    Usage
}
