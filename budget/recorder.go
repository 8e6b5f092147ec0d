package budget

import (
	"log/slog"
	"sync/atomic"
)

// Recorder is the asynchronous side channel between the fallback
// wrapper and the Controller. Records are enqueued without blocking and
// drained by a single worker, so accounting can never block or fail a
// response. When the queue is full the record is dropped and counted —
// exact spend is reconciled out-of-band.
type Recorder struct {
	ctrl    *Controller
	queue   chan UsageRecord
	stop    chan struct{}
	done    chan struct{}
	logger  *slog.Logger
	closed  atomic.Bool
	dropped atomic.Int64
}

// DefaultQueueSize bounds the recorder queue when no size is given.
const DefaultQueueSize = 256

// NewRecorder starts a Recorder draining into ctrl. A size of zero
// uses DefaultQueueSize. The logger may be nil.
func NewRecorder(ctrl *Controller, size int, logger *slog.Logger) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		ctrl:   ctrl,
		queue:  make(chan UsageRecord, size),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go r.drain()
	return r
}

// Record enqueues a usage record. It never blocks: when the queue is
// full or the recorder is closed, the record is dropped and logged.
func (r *Recorder) Record(rec UsageRecord) {
	if r.closed.Load() {
		r.drop(rec, "recorder closed")
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.drop(rec, "queue full")
	}
}

// Dropped returns the number of records lost to a full queue or a
// closed recorder.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains any queued records and stops the worker. Records
// submitted after Close are dropped.
func (r *Recorder) Close() {
	if r.closed.CompareAndSwap(false, true) {
		close(r.stop)
		<-r.done
	}
}

func (r *Recorder) drop(rec UsageRecord, why string) {
	r.dropped.Add(1)
	r.logger.Warn("dropping usage record",
		"reason", why, "record_id", rec.ID, "org_id", rec.OrgID)
}

func (r *Recorder) drain() {
	defer close(r.done)
	for {
		select {
		case rec := <-r.queue:
			r.ctrl.RecordUsage(rec)
		case <-r.stop:
			// Flush whatever is already queued, then exit.
			for {
				select {
				case rec := <-r.queue:
					r.ctrl.RecordUsage(rec)
				default:
					return
				}
			}
		}
	}
}
