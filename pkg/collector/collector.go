// Package collector implements the client side aggregation pipeline: a
// concurrent registry of counters, gauges and histograms, periodically
// drained, serialized to statsd wire lines and pushed through a packet
// batcher to a transport backend.
package collector

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/sirupsen/logrus"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/pkg/histogram"
	"github.com/gostatsc/gostatsc/pkg/writer"
)

// Options configures a Collector.  The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	// MaxUDPPacketSize bounds the payload size of a single packet.
	MaxUDPPacketSize int
	// MaxUDPBatchSize is the number of packets handed to the backend at once.
	MaxUDPBatchSize int
	// FlushInterval is the period of the automatic flush.  Zero disables the
	// timer; metrics are then only sent on explicit Flush and on shutdown.
	FlushInterval time.Duration
	// FlushAligned aligns the flush cycle to wall clock interval boundaries.
	FlushAligned bool
	// FlushOffset shifts the aligned flush boundary forward.  Only used when
	// FlushAligned is set.
	FlushOffset time.Duration
	// StatsPrefix is prepended verbatim to every metric name on the wire.
	StatsPrefix string
	// Writer is the transport backend.  Required.
	Writer gostatsc.PacketWriter
	// HistogramConfigs maps metric names to histogram configuration.
	HistogramConfigs map[string]histogram.Config
	// DefaultSigFig is the precision of histograms without an explicit
	// configuration entry.
	DefaultSigFig int
	// Hasher places aggregation keys into registry shards.  Nil selects the
	// seeded default.
	Hasher gostatsc.Hasher
	// Logger receives transport errors.  Nil selects the standard logger.
	Logger logrus.FieldLogger
	// Closer, when set, is closed after the flush loop terminates.  Pass the
	// socket the Writer was built on so Run tears it down.
	Closer io.Closer
}

// DefaultOptions returns Options with production defaults on top of w.
func DefaultOptions(w gostatsc.PacketWriter) Options {
	return Options{
		MaxUDPPacketSize: DefaultMaxUDPPacketSize,
		MaxUDPBatchSize:  DefaultMaxUDPBatchSize,
		FlushInterval:    DefaultFlushInterval,
		DefaultSigFig:    histogram.SigFigDefault,
		Writer:           w,
	}
}

// Collector is the application facing entry point.  Recording methods are
// safe for unbounded concurrent use and never block on the network; all
// sending happens on the flush goroutine started by Run.
type Collector struct {
	registry *Registry
	flusher  *flusher
	closer   io.Closer
}

// NewCollector validates opts and assembles the pipeline.  The flush loop
// does not start until Run is called.
func NewCollector(opts Options) (*Collector, error) {
	if opts.Writer == nil {
		return nil, fmt.Errorf("writer backend is required")
	}
	if opts.MaxUDPPacketSize <= 0 {
		return nil, fmt.Errorf("invalid max packet size %d: must be positive", opts.MaxUDPPacketSize)
	}
	if opts.MaxUDPBatchSize < 1 {
		return nil, fmt.Errorf("invalid max batch size %d: must be at least 1", opts.MaxUDPBatchSize)
	}
	if opts.FlushInterval < 0 {
		return nil, fmt.Errorf("invalid flush interval %v: must not be negative", opts.FlushInterval)
	}
	if opts.FlushAligned && (opts.FlushOffset < 0 || opts.FlushOffset >= opts.FlushInterval) {
		return nil, fmt.Errorf("invalid flush offset %v: must be within [0, %v)", opts.FlushOffset, opts.FlushInterval)
	}
	defaultConfig := histogram.Config{SigFig: opts.DefaultSigFig}
	if err := defaultConfig.Validate(); err != nil {
		return nil, err
	}
	for name, cfg := range opts.HistogramConfigs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("histogram config for %q: %w", name, err)
		}
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = gostatsc.NewSeededHasher()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	registry := NewRegistry(hasher, opts.HistogramConfigs, defaultConfig)
	batcher := writer.NewBatcher(opts.Writer, opts.MaxUDPPacketSize, opts.MaxUDPBatchSize)
	fl := newFlusher(opts.FlushInterval, registry, nil, batcher, logger)
	fl.aligned = opts.FlushAligned
	fl.offset = opts.FlushOffset
	fl.serializer = NewSerializer(opts.StatsPrefix, batcher, fl.reportError)

	return &Collector{
		registry: registry,
		flusher:  fl,
		closer:   opts.Closer,
	}, nil
}

// Count increments the named counter by 1.
func (c *Collector) Count(name string, tags gostatsc.Tags) {
	c.registry.Count(name, tags, 1)
}

// CountAdd increments the named counter by delta.
func (c *Collector) CountAdd(name string, tags gostatsc.Tags, delta int64) {
	c.registry.Count(name, tags, delta)
}

// Gauge sets the named gauge.  Within a flush window the last write wins.
func (c *Collector) Gauge(name string, tags gostatsc.Tags, value int64) {
	c.registry.Gauge(name, tags, value)
}

// Histogram records value into the named distribution.
func (c *Collector) Histogram(name string, tags gostatsc.Tags, value int64) {
	c.registry.Histogram(name, tags, value)
}

// Flush requests an out-of-band flush cycle.  It never blocks and coalesces
// with a pending request.
func (c *Collector) Flush() {
	c.flusher.notify()
}

// Run drives the flush loop until ctx is done, performs the final drain and
// closes the configured Closer.  Call it from its own goroutine.
func (c *Collector) Run(ctx context.Context) {
	var wg wait.Group
	defer func() {
		wg.Wait()
		if c.closer != nil {
			_ = c.closer.Close()
		}
	}()
	wg.StartWithContext(ctx, c.flusher.Run)
}
