// Package inference defines the domain contracts for the clinical
// inference pipeline: interchangeable text-generation backends, the
// request/result values they exchange, and the error taxonomy shared by
// every layer above them.
package inference

import "context"

// Backend is a strategy pattern interface for text-generation backends.
// Implementations must not retry internally — retry and failover policy
// lives one layer up, in the fallback wrapper, so a backend stays a
// simple, testable unit.
type Backend interface {
	// Generate sends a single generation request and blocks until the
	// backend responds. It fails with an error wrapping ErrUnavailable
	// when the backend cannot be reached and ErrGeneration for any
	// backend-reported failure.
	Generate(ctx context.Context, req Request) (Result, error)

	// Available is a cheap liveness probe. It must never panic and
	// returns false rather than propagating transient errors.
	Available(ctx context.Context) bool

	// Status reports an operational snapshot. It is used for
	// visibility, never for control flow.
	Status() StatusReport
}

// Streamer is an optional capability for backends that support
// incremental delivery. Callers discover it with a type assertion on a
// Backend value.
type Streamer interface {
	GenerateStream(ctx context.Context, req Request) (Stream, error)
}

// Stream uses a pull-based iterator pattern. Next returns io.EOF when
// the stream completes normally. Cancellation flows through the context
// passed to GenerateStream.
type Stream interface {
	Next() (Chunk, error)
	Close() error
}

// Chunk is one increment of a streaming generation.
type Chunk struct {
	Text string
}

// StatusReport is a snapshot of a backend's operational state.
type StatusReport struct {
	Name      string // backend identifier, e.g. "ollama" or "gemini"
	Available bool
	Metered   bool   // true when calls incur per-token cost
	LastError string // summary of the most recent failure, "" if none
}
