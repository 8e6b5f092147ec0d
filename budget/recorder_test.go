package budget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notewell/inference/budget"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	t.Run("drains queued records into the controller", func(t *testing.T) {
		t.Parallel()
		c := budget.New(budget.Limits{}, callRates)
		r := budget.NewRecorder(c, 8, nil)

		r.Record(oneDollarRecord("org-1"))
		r.Record(oneDollarRecord("org-1"))
		r.Close() // drains before returning

		assert.InDelta(t, 2.0, c.Spent("org-1"), 1e-9)
		assert.Zero(t, r.Dropped())
	})

	t.Run("record after close is dropped, not applied", func(t *testing.T) {
		t.Parallel()
		c := budget.New(budget.Limits{}, callRates)
		r := budget.NewRecorder(c, 8, nil)
		r.Close()

		r.Record(oneDollarRecord("org-1"))

		assert.Zero(t, c.Spent("org-1"))
		assert.Equal(t, int64(1), r.Dropped())
	})

	t.Run("close twice is a no-op", func(t *testing.T) {
		t.Parallel()
		c := budget.New(budget.Limits{}, callRates)
		r := budget.NewRecorder(c, 8, nil)
		r.Close()
		assert.NotPanics(t, r.Close)
	})

	t.Run("zero size uses the default queue", func(t *testing.T) {
		t.Parallel()
		c := budget.New(budget.Limits{}, callRates)
		r := budget.NewRecorder(c, 0, nil)
		r.Record(oneDollarRecord("org-1"))
		r.Close()

		assert.InDelta(t, 1.0, c.Spent("org-1"), 1e-9)
	})
}
