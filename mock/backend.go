// Package mock provides test doubles for inference interfaces using
// function fields.
package mock

import (
	"context"

	"github.com/notewell/inference"
)

// Interface compliance checks.
var (
	_ inference.Backend  = (*Backend)(nil)
	_ inference.Streamer = (*Backend)(nil)
)

// Backend is a test double for inference.Backend.
// Set the function fields for the methods you need. GenerateFn panics
// when nil to catch missing setup. AvailableFn and StatusFn are
// nil-safe (available, named "mock") because most tests never customize
// them.
type Backend struct {
	GenerateFn       func(ctx context.Context, req inference.Request) (inference.Result, error)
	GenerateStreamFn func(ctx context.Context, req inference.Request) (inference.Stream, error)
	AvailableFn      func(ctx context.Context) bool
	StatusFn         func() inference.StatusReport
}

// Generate delegates to GenerateFn.
func (b *Backend) Generate(ctx context.Context, req inference.Request) (inference.Result, error) {
	return b.GenerateFn(ctx, req)
}

// GenerateStream delegates to GenerateStreamFn.
func (b *Backend) GenerateStream(ctx context.Context, req inference.Request) (inference.Stream, error) {
	return b.GenerateStreamFn(ctx, req)
}

// Available delegates to AvailableFn. Returns true when AvailableFn is nil.
func (b *Backend) Available(ctx context.Context) bool {
	if b.AvailableFn == nil {
		return true
	}
	return b.AvailableFn(ctx)
}

// Status delegates to StatusFn. Returns a minimal report when StatusFn is nil.
func (b *Backend) Status() inference.StatusReport {
	if b.StatusFn == nil {
		return inference.StatusReport{Name: "mock", Available: true}
	}
	return b.StatusFn()
}
