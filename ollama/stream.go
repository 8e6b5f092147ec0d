package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/notewell/inference"
)

// stream implements [inference.Stream] by decoding newline-delimited
// JSON objects from an /api/generate response body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	done    bool
	err     error // terminal error, if any
}

// Interface compliance check.
var _ inference.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser) *stream {
	return &stream{
		body:    body,
		scanner: bufio.NewScanner(body),
		ctx:     ctx,
	}
}

// Next decodes the next response object. Returns io.EOF after the
// server sends its done=true object.
func (s *stream) Next() (inference.Chunk, error) {
	if s.err != nil {
		return inference.Chunk{}, s.err
	}
	if s.done {
		return inference.Chunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ar apiResponse
		if err := json.Unmarshal(line, &ar); err != nil {
			s.err = fmt.Errorf("ollama: decoding stream: %v: %w", err, inference.ErrGeneration)
			return inference.Chunk{}, s.err
		}
		if ar.Done {
			s.done = true
			if ar.Response == "" {
				return inference.Chunk{}, io.EOF
			}
		}
		return inference.Chunk{Text: ar.Response}, nil
	}

	if err := s.scanner.Err(); err != nil {
		if s.ctx.Err() != nil {
			s.err = fmt.Errorf("ollama: stream aborted: %w", s.ctx.Err())
		} else {
			s.err = fmt.Errorf("ollama: %v: %w", err, inference.ErrUnavailable)
		}
		return inference.Chunk{}, s.err
	}

	// Body ended without a done=true object.
	s.err = fmt.Errorf("ollama: unexpected end of stream: %w", inference.ErrGeneration)
	return inference.Chunk{}, s.err
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	return s.body.Close()
}
