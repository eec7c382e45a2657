package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ash2k/stager/wait"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/pkg/collector"
	"github.com/gostatsc/gostatsc/pkg/writer"
)

func main() {
	opts := parseArgs(os.Args[1:])

	conn, err := net.Dial("udp", opts.Target)
	if err != nil {
		log.Fatalf("Failed to connect to %q: %v", opts.Target, err)
	}
	c, err := collector.NewCollector(collector.Options{
		MaxUDPPacketSize: collector.DefaultMaxUDPPacketSize,
		MaxUDPBatchSize:  collector.DefaultMaxUDPBatchSize,
		FlushInterval:    time.Duration(opts.FlushInterval) * time.Second,
		StatsPrefix:      opts.MetricPrefix,
		Writer:           writer.NewSimple(conn),
		Closer:           conn,
	})
	if err != nil {
		log.Fatalf("Failed to construct collector: %v", err)
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	cancelOnInterrupt(ctx, cancelFunc)

	var wg wait.Group
	wg.StartWithContext(ctx, c.Run)

	workers := make([]*loadWorker, 0, opts.Workers)
	var workersWg wait.Group
	for i := uint(0); i < opts.Workers; i++ {
		w := &loadWorker{
			collector: c,
			rnd:       rand.New(rand.NewSource(rand.Int63())),
			limiter:   rate.NewLimiter(rate.Limit(opts.Rate), int(opts.Rate)),
			counters: metricData{
				name:            "counter",
				remaining:       int64(opts.Counts.Counter / uint64(opts.Workers)),
				nameCardinality: opts.NameCard.Counter,
				tagCardinality:  opts.TagCard.Counter,
			},
			gauges: metricData{
				name:            "gauge",
				remaining:       int64(opts.Counts.Gauge / uint64(opts.Workers)),
				nameCardinality: opts.NameCard.Gauge,
				tagCardinality:  opts.TagCard.Gauge,
			},
			histograms: metricData{
				name:            "histogram",
				remaining:       int64(opts.Counts.Histogram / uint64(opts.Workers)),
				nameCardinality: opts.NameCard.Histogram,
				tagCardinality:  opts.TagCard.Histogram,
			},
			valueLimit: int64(opts.ValueLimit),
		}
		workers = append(workers, w)
		workersWg.StartWithContext(ctx, w.run)
	}

	done := make(chan struct{})
	go func() {
		workersWg.Wait()
		close(done)
	}()

	statusTicker := time.NewTicker(1 * time.Second)
	defer statusTicker.Stop()
loop:
	for {
		select {
		case <-done:
			break loop
		case <-ctx.Done():
			break loop
		case <-statusTicker.C:
			var counters, gauges, histograms int64
			for _, w := range workers {
				counters += atomic.LoadInt64(&w.counters.remaining)
				gauges += atomic.LoadInt64(&w.gauges.remaining)
				histograms += atomic.LoadInt64(&w.histograms.remaining)
			}
			fmt.Printf("remaining: %d counters, %d gauges, %d histogram samples\n", counters, gauges, histograms)
		}
	}

	c.Flush()
	cancelFunc()
	wg.Wait()
}

type metricData struct {
	// remaining must be read/written only using atomic instructions.
	remaining       int64
	name            string
	nameCardinality uint
	tagCardinality  []uint
}

// loadWorker records synthetic metrics through the collector API at a
// bounded rate until every budget is exhausted.
type loadWorker struct {
	collector  *collector.Collector
	rnd        *rand.Rand
	limiter    *rate.Limiter
	counters   metricData
	gauges     metricData
	histograms metricData
	valueLimit int64
}

func (w *loadWorker) run(ctx context.Context) {
	for {
		recorded := false
		if w.record(ctx, &w.counters, w.recordCounter) {
			recorded = true
		}
		if w.record(ctx, &w.gauges, w.recordGauge) {
			recorded = true
		}
		if w.record(ctx, &w.histograms, w.recordHistogram) {
			recorded = true
		}
		if !recorded || ctx.Err() != nil {
			return
		}
	}
}

func (w *loadWorker) record(ctx context.Context, md *metricData, f func(md *metricData)) bool {
	if atomic.LoadInt64(&md.remaining) <= 0 {
		return false
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return false
	}
	f(md)
	atomic.AddInt64(&md.remaining, -1)
	return true
}

func (w *loadWorker) recordCounter(md *metricData) {
	w.collector.CountAdd(w.metricName(md), w.metricTags(md), w.value())
}

func (w *loadWorker) recordGauge(md *metricData) {
	w.collector.Gauge(w.metricName(md), w.metricTags(md), w.value())
}

func (w *loadWorker) recordHistogram(md *metricData) {
	w.collector.Histogram(w.metricName(md), w.metricTags(md), w.value())
}

func (w *loadWorker) metricName(md *metricData) string {
	if md.nameCardinality <= 1 {
		return md.name
	}
	return md.name + "." + strconv.Itoa(w.rnd.Intn(int(md.nameCardinality)))
}

func (w *loadWorker) metricTags(md *metricData) gostatsc.Tags {
	if len(md.tagCardinality) == 0 {
		return nil
	}
	tags := make(gostatsc.Tags, 0, len(md.tagCardinality))
	for i, card := range md.tagCardinality {
		tags = append(tags, fmt.Sprintf("tag%d:%d", i, w.rnd.Intn(int(card))))
	}
	return tags
}

func (w *loadWorker) value() int64 {
	if w.valueLimit <= 0 {
		return 1
	}
	return 1 + w.rnd.Int63n(w.valueLimit)
}

// cancelOnInterrupt calls f when os.Interrupt or SIGTERM is received.
func cancelOnInterrupt(ctx context.Context, f context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			f()
		case <-ctx.Done():
		}
	}()
}
