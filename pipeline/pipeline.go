// Package pipeline orchestrates the staged clinical inference run:
// safety screening, parallel specialized assessments, and optional
// synthesis, against whichever backend capability it is configured
// with. The pipeline recovers locally from step failures — callers
// always receive a well-formed result except when the run context is
// cancelled before a safety substitute can be produced.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/notewell/inference"
)

// SafetyPolicy selects what the pipeline substitutes when the safety
// screening call itself fails.
type SafetyPolicy int

const (
	// FailOpen substitutes an unknown-risk assessment and proceeds.
	// Keeps the pipeline available when the safety backend is degraded.
	FailOpen SafetyPolicy = iota
	// FailClosed substitutes a high-risk assessment, forcing the
	// output into human review.
	FailClosed
)

// Pipeline drives the staged inference run. Construct once, share
// across invocations; each run owns its own result and trace.
type Pipeline struct {
	backend   inference.Backend
	synthesis bool
	policy    SafetyPolicy
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSynthesis enables the synthesis stage. Even when enabled it runs
// only after two or more assessments succeed.
func WithSynthesis(enabled bool) Option {
	return func(p *Pipeline) { p.synthesis = enabled }
}

// WithSafetyPolicy sets the substitute behavior for safety-call
// failures. Default is FailOpen.
func WithSafetyPolicy(policy SafetyPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithLogger sets the audit/telemetry logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the time source. Used by tests. The function is
// called from concurrent assessment goroutines and must be safe for
// concurrent use.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline running against the given backend capability —
// a raw backend or a fallback-wrapped pair.
func New(backend inference.Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	differential bool
	letter       bool
	orgID        string
}

// WithDifferential enables the differential assessment for this run.
func WithDifferential() RunOption {
	return func(c *runConfig) { c.differential = true }
}

// WithLetter enables the referral letter assessment for this run.
func WithLetter() RunOption {
	return func(c *runConfig) { c.letter = true }
}

// WithOrg bills this run's metered calls to the given organization.
func WithOrg(orgID string) RunOption {
	return func(c *runConfig) { c.orgID = orgID }
}

// outcome is one settled assessment sub-task, folded into the trace in
// completion order.
type outcome struct {
	name    StepName
	text    string
	backend string
	dur     time.Duration
	err     error
}

// Run executes the staged pipeline for one clinical note. Safety
// screening always runs first, unconditionally; a CRITICAL risk halts
// the run before any assessment is dispatched. Individual assessment
// failures are captured in the trace and never surface as errors.
func (p *Pipeline) Run(ctx context.Context, in NoteInput, opts ...RunOption) (*RunResult, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := p.now()
	res := &RunResult{ID: uuid.NewString()}

	if err := p.screen(ctx, in, &cfg, res); err != nil {
		return nil, err
	}

	if res.Safety.Risk == RiskCritical {
		res.Halted = true
		res.HaltReason = haltReason(res.Safety.Concerns)
		res.Elapsed = p.now().Sub(start)
		p.audit(res)
		return res, nil
	}

	succeeded := p.assess(ctx, in, &cfg, res)

	if p.synthesis && succeeded >= 2 {
		p.synthesize(ctx, &cfg, res)
	}

	res.Elapsed = p.now().Sub(start)
	p.audit(res)
	return res, nil
}

// screen runs the safety stage. A failed safety call substitutes the
// policy's conservative default and records the step as an error; the
// only unrecoverable case is a context already cancelled.
func (p *Pipeline) screen(ctx context.Context, in NoteInput, cfg *runConfig, res *RunResult) error {
	stepStart := p.now()
	out, err := p.backend.Generate(ctx, safetyRequest(in, cfg.orgID))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.Safety = p.substituteSafety()
		res.Steps = append(res.Steps, Step{
			Name:     StepSafety,
			Status:   StepError,
			Err:      err.Error(),
			Duration: p.now().Sub(stepStart),
		})
		return nil
	}
	res.Safety = parseSafety(out.Text)
	res.Steps = append(res.Steps, Step{
		Name:     StepSafety,
		Status:   StepCompleted,
		Backend:  out.Backend,
		Duration: p.now().Sub(stepStart),
	})
	return nil
}

// substituteSafety returns the conservative default for a failed safety
// call, per the configured policy.
func (p *Pipeline) substituteSafety() SafetyAssessment {
	if p.policy == FailClosed {
		return SafetyAssessment{
			Risk:     RiskHigh,
			Concerns: []string{"safety screening unavailable, human review required"},
		}
	}
	return SafetyAssessment{Risk: RiskUnknown}
}

// assess fans one generation call out per enabled assessment kind,
// joins on every settled outcome, and folds them into the trace in
// completion order. Returns the number of successful assessments.
func (p *Pipeline) assess(ctx context.Context, in NoteInput, cfg *runConfig, res *RunResult) int {
	kinds := []StepName{StepClinical}
	if cfg.differential {
		kinds = append(kinds, StepDifferential)
	}
	if cfg.letter {
		kinds = append(kinds, StepLetter)
	}

	ch := make(chan outcome, len(kinds))
	for _, kind := range kinds {
		go func(kind StepName) {
			stepStart := p.now()
			out, err := p.backend.Generate(ctx, assessmentRequest(kind, in, res.Safety, cfg.orgID))
			ch <- outcome{
				name:    kind,
				text:    out.Text,
				backend: out.Backend,
				dur:     p.now().Sub(stepStart),
				err:     err,
			}
		}(kind)
	}

	succeeded := 0
	for range kinds {
		o := <-ch
		if o.err != nil {
			res.Steps = append(res.Steps, Step{
				Name:     o.name,
				Status:   StepError,
				Err:      o.err.Error(),
				Duration: o.dur,
			})
			continue
		}
		succeeded++
		res.setAssessment(o.name, o.text)
		res.Steps = append(res.Steps, Step{
			Name:     o.name,
			Status:   StepCompleted,
			Backend:  o.backend,
			Duration: o.dur,
		})
	}
	return succeeded
}

// synthesize runs the combined-synthesis stage. Failure is traced but
// never fatal: the caller still receives the individual assessments.
func (p *Pipeline) synthesize(ctx context.Context, cfg *runConfig, res *RunResult) {
	stepStart := p.now()
	out, err := p.backend.Generate(ctx, synthesisRequest(res, cfg.orgID))
	if err != nil {
		res.Steps = append(res.Steps, Step{
			Name:     StepSynthesis,
			Status:   StepError,
			Err:      err.Error(),
			Duration: p.now().Sub(stepStart),
		})
		return
	}
	res.Synthesis = out.Text
	res.Steps = append(res.Steps, Step{
		Name:     StepSynthesis,
		Status:   StepCompleted,
		Backend:  out.Backend,
		Duration: p.now().Sub(stepStart),
	})
}

// audit emits the run and its full trace to the telemetry sink. This is
// a one-way emit for operational review.
func (p *Pipeline) audit(res *RunResult) {
	p.logger.Info("pipeline run finished",
		"run_id", res.ID,
		"halted", res.Halted,
		"risk", res.Safety.Risk.String(),
		"steps", len(res.Steps),
		"elapsed", res.Elapsed,
	)
	for _, s := range res.Steps {
		p.logger.Info("pipeline step",
			"run_id", res.ID,
			"step", string(s.Name),
			"status", string(s.Status),
			"backend", s.Backend,
			"duration", s.Duration,
			"error", s.Err,
		)
	}
}
