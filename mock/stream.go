package mock

import "github.com/notewell/inference"

// Interface compliance check.
var _ inference.Stream = (*Stream)(nil)

// Stream is a test double for inference.Stream.
// NextFn panics when nil to catch missing setup. CloseFn is nil-safe
// (no-op) because test code commonly calls defer stream.Close() without
// needing custom behavior.
type Stream struct {
	NextFn  func() (inference.Chunk, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (inference.Chunk, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
