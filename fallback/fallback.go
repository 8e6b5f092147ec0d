// Package fallback composes a primary and secondary backend into a
// single backend-shaped capability. The wrapper gates metered calls
// through admission control, retries transparently on the secondary
// when the primary fails or is denied, and records usage for metered
// successes through a fire-and-forget side channel. A single call is
// never split across both backends.
package fallback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notewell/inference"
	"github.com/notewell/inference/budget"
)

// Gate answers the admission-control question for metered calls.
// *budget.Controller satisfies it.
type Gate interface {
	CanSpend(orgID string) budget.Decision
}

// UsageSink receives accounting for completed metered calls.
// *budget.Recorder satisfies it.
type UsageSink interface {
	Record(rec budget.UsageRecord)
}

// Interface compliance checks.
var (
	_ inference.Backend  = (*Wrapper)(nil)
	_ inference.Streamer = (*Wrapper)(nil)
)

// Wrapper presents the Backend contract over a primary/secondary pair.
type Wrapper struct {
	primary   inference.Backend
	secondary inference.Backend // nil = no fallback
	gate      Gate              // nil = no admission control
	usage     UsageSink         // nil = no accounting
	logger    *slog.Logger

	// Metered is static per backend, so it is captured once at
	// construction. Status implementations may do live probing and
	// must stay out of the per-call path.
	primaryMetered   bool
	secondaryMetered bool
	primaryName      string
	secondaryName    string
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithSecondary sets the backend tried when the primary fails or is
// denied admission.
func WithSecondary(b inference.Backend) Option {
	return func(w *Wrapper) { w.secondary = b }
}

// WithGate sets the admission controller consulted before metered
// primary calls.
func WithGate(g Gate) Option {
	return func(w *Wrapper) { w.gate = g }
}

// WithUsage sets the sink that receives metered-call accounting.
func WithUsage(s UsageSink) Option {
	return func(w *Wrapper) { w.usage = s }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Wrapper) { w.logger = l }
}

// New creates a Wrapper around the primary backend.
func New(primary inference.Backend, opts ...Option) *Wrapper {
	w := &Wrapper{
		primary: primary,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	ps := w.primary.Status()
	w.primaryMetered, w.primaryName = ps.Metered, ps.Name
	if w.secondary != nil {
		ss := w.secondary.Status()
		w.secondaryMetered, w.secondaryName = ss.Metered, ss.Name
	}
	return w
}

// Generate tries the primary, then the secondary. When both fail, the
// primary's error is returned: it is semantically "why we needed a
// fallback", and surfacing the secondary's error instead would mask
// the real problem from operators.
func (w *Wrapper) Generate(ctx context.Context, req inference.Request) (inference.Result, error) {
	if d, denied := w.denied(req.OrgID); denied {
		if w.secondary == nil {
			return inference.Result{}, fmt.Errorf("fallback: %s: %w", d.Reason, inference.ErrBudgetExceeded)
		}
		w.logger.Info("admission denied, skipping to secondary",
			"org_id", req.OrgID, "reason", string(d.Reason))
		return w.generateOn(ctx, w.secondary, req)
	}

	res, err := w.primary.Generate(ctx, req)
	if err == nil {
		w.record(w.primary, req, res)
		return res, nil
	}
	if w.secondary == nil {
		return inference.Result{}, err
	}

	w.logger.Warn("primary backend failed, trying secondary",
		"primary", w.primaryName, "error", err)
	res, secErr := w.secondary.Generate(ctx, req)
	if secErr != nil {
		w.logger.Error("secondary backend failed",
			"secondary", w.secondaryName, "error", secErr)
		return inference.Result{}, err // primary's error is the root cause
	}
	w.record(w.secondary, req, res)
	return res, nil
}

// generateOn issues the call on b and applies the metered-accounting
// step on success.
func (w *Wrapper) generateOn(ctx context.Context, b inference.Backend, req inference.Request) (inference.Result, error) {
	res, err := b.Generate(ctx, req)
	if err != nil {
		return inference.Result{}, err
	}
	w.record(b, req, res)
	return res, nil
}

// GenerateStream routes streaming calls to the primary only. A
// partially delivered stream cannot be resumed on a different backend
// without re-emitting already-sent content, so mid-stream failover is
// not attempted.
func (w *Wrapper) GenerateStream(ctx context.Context, req inference.Request) (inference.Stream, error) {
	if d, denied := w.denied(req.OrgID); denied {
		return nil, fmt.Errorf("fallback: %s: %w", d.Reason, inference.ErrBudgetExceeded)
	}
	s, ok := w.primary.(inference.Streamer)
	if !ok {
		return nil, fmt.Errorf("fallback: backend %q does not support streaming: %w",
			w.primaryName, inference.ErrGeneration)
	}
	return s.GenerateStream(ctx, req)
}

// Available reports whether at least one composed backend is reachable.
func (w *Wrapper) Available(ctx context.Context) bool {
	if w.primary.Available(ctx) {
		return true
	}
	return w.secondary != nil && w.secondary.Available(ctx)
}

// Status reports the pair's operational state under the primary's
// metered flag and a combined name.
func (w *Wrapper) Status() inference.StatusReport {
	ps := w.primary.Status()
	if w.secondary == nil {
		return ps
	}
	ss := w.secondary.Status()
	return inference.StatusReport{
		Name:      ps.Name + "+" + ss.Name,
		Available: ps.Available || ss.Available,
		Metered:   ps.Metered,
		LastError: ps.LastError,
	}
}

// denied reports whether admission control blocks a metered call on the
// primary.
func (w *Wrapper) denied(orgID string) (budget.Decision, bool) {
	if w.gate == nil || !w.primaryMetered {
		return budget.Decision{Allowed: true}, false
	}
	d := w.gate.CanSpend(orgID)
	return d, !d.Allowed
}

// meteredOn reports the construction-time metered flag for b.
func (w *Wrapper) meteredOn(b inference.Backend) bool {
	if b == w.secondary {
		return w.secondaryMetered
	}
	return w.primaryMetered
}

// record forwards accounting for a metered success. The sink is
// fire-and-forget: it never blocks and its failures never surface here.
func (w *Wrapper) record(b inference.Backend, req inference.Request, res inference.Result) {
	if w.usage == nil || !w.meteredOn(b) {
		return
	}
	w.usage.Record(budget.NewUsageRecord(req.OrgID, res.Backend, res.Usage))
}
