package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/internal/fakesocket"
	"github.com/gostatsc/gostatsc/internal/fixtures"
	"github.com/gostatsc/gostatsc/pkg/histogram"
)

func TestNewCollectorValidation(t *testing.T) {
	t.Parallel()
	w := fakesocket.NewCapturingWriter()

	_, err := NewCollector(Options{})
	assert.Error(t, err)

	opts := DefaultOptions(w)
	opts.MaxUDPPacketSize = 0
	_, err = NewCollector(opts)
	assert.Error(t, err)

	opts = DefaultOptions(w)
	opts.MaxUDPBatchSize = 0
	_, err = NewCollector(opts)
	assert.Error(t, err)

	opts = DefaultOptions(w)
	opts.FlushInterval = -time.Second
	_, err = NewCollector(opts)
	assert.Error(t, err)

	opts = DefaultOptions(w)
	opts.DefaultSigFig = histogram.SigFigMax + 1
	_, err = NewCollector(opts)
	assert.Error(t, err)

	opts = DefaultOptions(w)
	opts.HistogramConfigs = map[string]histogram.Config{
		"latency": {SigFig: 3, Percentiles: []float64{200}},
	}
	_, err = NewCollector(opts)
	assert.Error(t, err)

	_, err = NewCollector(DefaultOptions(w))
	assert.NoError(t, err)
}

// runCycle records through the collector, shuts it down and returns what the
// final drain pushed to the backend.
func runCycle(t *testing.T, opts Options, record func(c *Collector)) [][]byte {
	w := opts.Writer.(*fakesocket.CapturingWriter)
	c, err := NewCollector(opts)
	require.NoError(t, err)

	ctx, cancelFunc := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	record(c)
	cancelFunc()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not shut down")
	}
	return w.Packets()
}

func TestCollectorFlushesOnShutdown(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions(fakesocket.NewCapturingWriter())
	opts.FlushInterval = 0
	packets := runCycle(t, opts, func(c *Collector) {
		c.Count("requests", nil)
		c.CountAdd("requests", nil, 4)
	})
	require.Len(t, packets, 1)
	assert.Equal(t, "requests:5|c\n", string(packets[0]))
}

func TestCollectorPrefix(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions(fakesocket.NewCapturingWriter())
	opts.FlushInterval = 0
	opts.StatsPrefix = "myapp."
	packets := runCycle(t, opts, func(c *Collector) {
		c.Gauge("queue.depth", gostatsc.Tags{"env:dev"}, 17)
	})
	require.Len(t, packets, 1)
	assert.Equal(t, "myapp.queue.depth:17|g|#env:dev\n", string(packets[0]))
}

func TestCollectorHistogramPipeline(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions(fakesocket.NewCapturingWriter())
	opts.FlushInterval = 0
	opts.HistogramConfigs = map[string]histogram.Config{
		"latency": {SigFig: 2},
	}
	packets := runCycle(t, opts, func(c *Collector) {
		c.Histogram("latency", nil, 100)
		c.Histogram("latency", nil, 200)
		c.Histogram("latency", nil, 300)
	})
	require.Len(t, packets, 1)
	assert.Equal(t,
		"latency.count:3|h\n"+
			"latency.min:100|h\n"+
			"latency.avg:200|h\n"+
			"latency.max:300|h\n"+
			"latency.p95:301|h\n",
		string(packets[0]))
}

func TestCollectorManualFlush(t *testing.T) {
	t.Parallel()
	w := fakesocket.NewCapturingWriter()
	opts := DefaultOptions(w)
	opts.FlushInterval = 0
	c, err := NewCollector(opts)
	require.NoError(t, err)

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	c.Count("requests", nil)
	c.Flush()

	deadline := time.Now().Add(5 * time.Second)
	for len(w.Packets()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	packets := w.Packets()
	require.Len(t, packets, 1)
	assert.Equal(t, "requests:1|c\n", string(packets[0]))

	cancelFunc()
	<-done
}

func TestCollectorPeriodicFlush(t *testing.T) {
	t.Parallel()
	w := fakesocket.NewCapturingWriter()
	opts := DefaultOptions(w)
	opts.FlushInterval = time.Second
	c, err := NewCollector(opts)
	require.NoError(t, err)

	mock := clock.NewMock(time.Unix(1, 0))
	ctx, cancelFunc := context.WithCancel(clock.Context(context.Background(), mock))
	defer cancelFunc()
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	c.Gauge("depth", nil, 3)

	stepCtx, stepCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stepCancel()
	for len(w.Packets()) == 0 && stepCtx.Err() == nil {
		fixtures.NextStep(stepCtx, mock)
	}
	packets := w.Packets()
	require.NotEmpty(t, packets)
	assert.Equal(t, "depth:3|g\n", string(packets[0]))

	cancelFunc()
	<-done
}

func TestCollectorAlignedFlush(t *testing.T) {
	t.Parallel()
	w := fakesocket.NewCapturingWriter()
	opts := DefaultOptions(w)
	opts.FlushInterval = time.Second
	opts.FlushAligned = true
	opts.FlushOffset = 300 * time.Millisecond
	c, err := NewCollector(opts)
	require.NoError(t, err)

	mock := clock.NewMock(time.Unix(1, 0))
	ctx, cancelFunc := context.WithCancel(clock.Context(context.Background(), mock))
	defer cancelFunc()
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	c.Count("requests", nil)

	stepCtx, stepCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stepCancel()
	for len(w.Packets()) == 0 && stepCtx.Err() == nil {
		fixtures.NextStep(stepCtx, mock)
	}
	packets := w.Packets()
	require.NotEmpty(t, packets)
	assert.Equal(t, "requests:1|c\n", string(packets[0]))

	cancelFunc()
	<-done
}

func TestCollectorRejectsBadFlushOffset(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions(fakesocket.NewCapturingWriter())
	opts.FlushAligned = true
	opts.FlushOffset = opts.FlushInterval
	_, err := NewCollector(opts)
	assert.Error(t, err)
}

func TestCollectorSplitsLargeDrains(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions(fakesocket.NewCapturingWriter())
	opts.FlushInterval = 0
	opts.MaxUDPPacketSize = 32
	packets := runCycle(t, opts, func(c *Collector) {
		for i := 0; i < 20; i++ {
			c.Gauge("metric", gostatsc.Tags{"idx:" + string(rune('a'+i))}, int64(i))
		}
	})
	// Every line is intact even though the drain spans packets.
	assert.Greater(t, len(packets), 1)
	total := 0
	for _, p := range packets {
		assert.LessOrEqual(t, len(p), 32)
		assert.Equal(t, byte('\n'), p[len(p)-1])
		total += len(p)
	}
	assert.Positive(t, total)
}

func TestParseHistogramConfigs(t *testing.T) {
	t.Parallel()
	configs, err := parseHistogramConfigs(`{"latency":{"sig_fig":2,"percentiles":[50,99]},"other":{"stats":["max"]}}`, 3)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, 2, configs["latency"].SigFig)
	assert.Equal(t, []float64{50, 99}, configs["latency"].Percentiles)
	// Entries without an explicit precision inherit the default.
	assert.Equal(t, 3, configs["other"].SigFig)
	assert.Equal(t, []string{"max"}, configs["other"].Stats)

	configs, err = parseHistogramConfigs("", 3)
	require.NoError(t, err)
	assert.Empty(t, configs)

	_, err = parseHistogramConfigs("{not json", 3)
	assert.Error(t, err)
}
