// Package budget tracks metered spend per organization and answers the
// admission-control question asked before every metered backend call.
//
// Spend is accounted in integer micro-dollars so that concurrent
// pipeline runs can record usage with plain atomic adds. Accounting is
// deliberately best-effort and non-idempotent: two identical records
// add twice, and exact spend is reconciled out-of-band.
package budget

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/notewell/inference"
)

// Rates are per-million-token prices in USD. Cache-read tokens are not
// charged.
type Rates struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Limits configures the admission ceiling. A zero ceiling means
// unlimited spend.
type Limits struct {
	// DailyCeilingUSD is the maximum spend per organization per UTC day.
	DailyCeilingUSD float64
}

// DenyReason is a structured admission-denial reason, stable enough for
// callers to log and branch on.
type DenyReason string

const (
	DenyNone            DenyReason = ""
	DenyCeilingExceeded DenyReason = "daily ceiling exceeded"
	DenySuspended       DenyReason = "organization suspended"
)

// Decision is the answer to an admission check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// UsageRecord is one completed metered call's accounting payload.
type UsageRecord struct {
	ID      string // unique per call, assigned by the caller
	OrgID   string
	Backend string
	Usage   inference.Usage
	At      time.Time
}

// NewUsageRecord builds a record for a completed metered call.
func NewUsageRecord(orgID, backend string, usage inference.Usage) UsageRecord {
	return UsageRecord{
		ID:      uuid.NewString(),
		OrgID:   orgID,
		Backend: backend,
		Usage:   usage,
		At:      time.Now(),
	}
}

// orgState holds one organization's counters for the current window.
// spentMicro is updated with atomic adds so concurrent pipeline runs
// never serialize on a read-modify-write cycle.
type orgState struct {
	spentMicro atomic.Int64 // micro-USD spent in the current window
	windowDay  atomic.Int64 // UTC day number the window belongs to
	suspended  atomic.Bool
}

// Controller answers admission checks and records spend. It is safe for
// concurrent use from multiple simultaneous pipeline runs.
type Controller struct {
	mu   sync.RWMutex // guards orgs map shape only
	orgs map[string]*orgState

	limits Limits
	rates  Rates
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the time source. Used by tests to exercise
// window rollover.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller with the given limits and rates.
func New(limits Limits, rates Rates, opts ...Option) *Controller {
	c := &Controller{
		orgs:   make(map[string]*orgState),
		limits: limits,
		rates:  rates,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CanSpend reports whether a metered call for the organization may
// proceed. It is a pure read against current state and is safe to call
// at high frequency.
func (c *Controller) CanSpend(orgID string) Decision {
	st := c.state(orgID)
	if st.suspended.Load() {
		return Decision{Reason: DenySuspended}
	}
	if c.limits.DailyCeilingUSD <= 0 {
		return Decision{Allowed: true}
	}
	c.roll(st)
	if st.spentMicro.Load() >= int64(c.limits.DailyCeilingUSD*1e6) {
		return Decision{Reason: DenyCeilingExceeded}
	}
	return Decision{Allowed: true}
}

// RecordUsage folds a completed metered call into the organization's
// window. It never returns an error: accounting failures must not fail
// the clinical response. It is only ever invoked after a metered call
// has already produced a result.
func (c *Controller) RecordUsage(rec UsageRecord) {
	if rec.OrgID == "" {
		c.logger.Warn("usage record without organization, dropping",
			"record_id", rec.ID, "backend", rec.Backend)
		return
	}
	st := c.state(rec.OrgID)
	c.roll(st)
	st.spentMicro.Add(c.costMicro(rec.Usage))
}

// Spent returns the organization's spend in USD for the current window.
func (c *Controller) Spent(orgID string) float64 {
	st := c.state(orgID)
	c.roll(st)
	return float64(st.spentMicro.Load()) / 1e6
}

// Suspend blocks all metered calls for the organization until Resume.
func (c *Controller) Suspend(orgID string) {
	c.state(orgID).suspended.Store(true)
}

// Resume lifts a suspension.
func (c *Controller) Resume(orgID string) {
	c.state(orgID).suspended.Store(false)
}

// costMicro converts token usage to micro-USD at the configured rates.
func (c *Controller) costMicro(u inference.Usage) int64 {
	in := float64(u.InputTokens) * c.rates.InputPerMillion
	out := float64(u.OutputTokens) * c.rates.OutputPerMillion
	return int64(in + out)
}

// state returns the organization's counters, creating them on first use.
func (c *Controller) state(orgID string) *orgState {
	c.mu.RLock()
	st, ok := c.orgs[orgID]
	c.mu.RUnlock()
	if ok {
		return st
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok = c.orgs[orgID]; ok {
		return st
	}
	st = &orgState{}
	st.windowDay.Store(dayNumber(c.now()))
	c.orgs[orgID] = st
	return st
}

// roll resets the window lazily when the UTC day changes. The CAS makes
// exactly one caller the winner; an add racing the reset can be lost,
// which is acceptable for best-effort accounting.
func (c *Controller) roll(st *orgState) {
	today := dayNumber(c.now())
	prev := st.windowDay.Load()
	if prev == today {
		return
	}
	if st.windowDay.CompareAndSwap(prev, today) {
		st.spentMicro.Store(0)
	}
}

func dayNumber(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}
