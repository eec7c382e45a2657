package collector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"
	"golang.org/x/time/rate"

	"github.com/gostatsc/gostatsc/internal/util"
)

// drainer is the part of Registry the flusher drives.
type drainer interface {
	Drain(v Visitor)
}

// packetFlusher is the part of writer.Batcher the flusher drives.
type packetFlusher interface {
	Flush() (int, error)
	Reset()
}

// flusher owns the flush cycle: a periodic tick, manual flush requests and
// the final drain on shutdown all funnel through a single goroutine, so the
// registry is only ever drained from one place.
type flusher struct {
	interval   time.Duration
	aligned    bool
	offset     time.Duration
	registry   drainer
	serializer Visitor
	batcher    packetFlusher
	logger     logrus.FieldLogger
	limiter    *rate.Limiter

	// flushCh requests coalesce; a pending request absorbs later ones.
	flushCh chan struct{}
}

func newFlusher(interval time.Duration, registry drainer, serializer Visitor, batcher packetFlusher, logger logrus.FieldLogger) *flusher {
	return &flusher{
		interval:   interval,
		registry:   registry,
		serializer: serializer,
		batcher:    batcher,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(time.Minute), 5),
		flushCh:    make(chan struct{}, 1),
	}
}

// notify requests an out-of-band flush.  It never blocks.
func (f *flusher) notify() {
	select {
	case f.flushCh <- struct{}{}:
	default:
	}
}

// Run flushes on every tick and on every notify until ctx is done, then
// performs one final drain so buffered aggregates are not lost on shutdown.
func (f *flusher) Run(ctx context.Context) {
	var tickCh <-chan time.Time
	if f.interval > 0 {
		if f.aligned {
			tickCh = util.NewAlignedTicker(ctx, f.interval, f.offset).C
		} else {
			ticker := clock.FromContext(ctx).NewTicker(f.interval)
			defer ticker.Stop()
			tickCh = ticker.C
		}
	}
	for {
		select {
		case <-ctx.Done():
			f.flush()
			return
		case <-tickCh:
			f.flush()
		case <-f.flushCh:
			f.flush()
		}
	}
}

func (f *flusher) flush() {
	f.registry.Drain(f.serializer)
	if _, err := f.batcher.Flush(); err != nil {
		f.reportError(err)
		// The failed batch is dropped, never retried; a buffering backend
		// must not carry it into the next cycle.
		f.batcher.Reset()
	}
}

// reportError logs a send failure.  Transport errors during a network outage
// repeat every cycle, so logging is throttled.
func (f *flusher) reportError(err error) {
	if f.limiter.Allow() {
		f.logger.WithError(err).Error("Failed to send metrics")
	}
}
