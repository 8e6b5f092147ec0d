package gemini

import (
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"

	"github.com/notewell/inference"
)

// stream implements [inference.Stream] by wrapping the genai SDK's
// streaming iterator.
type stream struct {
	pull func() (*genai.GenerateContentResponse, error, bool)
	stop func()
	done bool
	err  error // terminal error, if any
}

// Interface compliance check.
var _ inference.Stream = (*stream)(nil)

func newStream(iterFn iter.Seq2[*genai.GenerateContentResponse, error]) *stream {
	next, stop := iter.Pull2(iterFn)
	return &stream{
		pull: next,
		stop: stop,
	}
}

// Next pulls the next response chunk. Returns io.EOF when the iterator
// is exhausted.
func (s *stream) Next() (inference.Chunk, error) {
	if s.err != nil {
		return inference.Chunk{}, s.err
	}
	if s.done {
		return inference.Chunk{}, io.EOF
	}

	for {
		resp, err, ok := s.pull()
		if !ok {
			s.done = true
			return inference.Chunk{}, io.EOF
		}
		if err != nil {
			s.err = fmt.Errorf("gemini: %v: %w", err, inference.ErrGeneration)
			return inference.Chunk{}, s.err
		}
		if text := resp.Text(); text != "" {
			return inference.Chunk{Text: text}, nil
		}
		// Chunk without text (e.g. usage-only trailer) - keep pulling.
	}
}

// Close releases the underlying iterator.
func (s *stream) Close() error {
	s.stop()
	return nil
}
