package collector

import (
	"sync"
	"sync/atomic"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/pkg/histogram"
)

// shardCount must be a power of two.
const shardCount = 32

// metricKey is the canonical aggregation key.  Tag order is preserved from
// the recording call; see gostatsc.Tags.
type metricKey struct {
	name string
	tags string
}

type counterEntry struct {
	// value must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	value int64
}

type gaugeEntry struct {
	// mu guards value and written as a pair, so a drain cutover observes
	// them consistently: a write racing the cutover lands in exactly one
	// cycle, neither duplicated nor lost.
	mu      sync.Mutex
	value   int64
	written bool
}

type histogramEntry struct {
	mu     sync.Mutex
	hist   *histogram.Histogram
	config histogram.Config
}

type shard struct {
	mu         sync.RWMutex
	counters   map[metricKey]*counterEntry
	gauges     map[metricKey]*gaugeEntry
	histograms map[metricKey]*histogramEntry
}

// Visitor receives the consistent snapshot of one flush cycle, one call per
// active aggregate.  The histogram passed to Histogram is only valid for the
// duration of the call; its storage is recycled afterwards.
type Visitor interface {
	Counter(name, tags string, value int64)
	Gauge(name, tags string, value int64)
	Histogram(name, tags string, hist *histogram.Histogram, config histogram.Config)
}

// Registry is the concurrent map from canonical key to mutable aggregate
// state.  Recording calls are safe from any goroutine and never fail; the
// key space grows without bound, which is the caller's responsibility to
// keep in check.  Drain is expected to be called from a single goroutine.
type Registry struct {
	shards        [shardCount]shard
	hasher        gostatsc.Hasher
	configs       map[string]histogram.Config
	defaultConfig histogram.Config

	// Reset histograms are pooled per precision so that a hot key swapped
	// out at drain time gets its storage back on the next cycle.
	spares [histogram.SigFigMax + 1]sync.Pool
}

// NewRegistry creates a Registry.  configs maps metric names to histogram
// configuration; metrics without an entry use defaultConfig.
func NewRegistry(hasher gostatsc.Hasher, configs map[string]histogram.Config, defaultConfig histogram.Config) *Registry {
	r := &Registry{
		hasher:        hasher,
		configs:       configs,
		defaultConfig: defaultConfig,
	}
	for i := range r.shards {
		sh := &r.shards[i]
		sh.counters = make(map[metricKey]*counterEntry)
		sh.gauges = make(map[metricKey]*gaugeEntry)
		sh.histograms = make(map[metricKey]*histogramEntry)
	}
	return r
}

func (r *Registry) shard(key metricKey) *shard {
	return &r.shards[r.hasher.HashKey(key.name, key.tags)&(shardCount-1)]
}

func (r *Registry) configFor(name string) histogram.Config {
	if cfg, ok := r.configs[name]; ok {
		return cfg
	}
	return r.defaultConfig
}

// Count adds delta to the counter identified by name and tags.
func (r *Registry) Count(name string, tags gostatsc.Tags, delta int64) {
	key := metricKey{name: name, tags: tags.Key()}
	sh := r.shard(key)

	sh.mu.RLock()
	e := sh.counters[key]
	sh.mu.RUnlock()
	if e == nil {
		e = insertCounter(sh, key)
	}
	atomic.AddInt64(&e.value, delta)
}

func insertCounter(sh *shard, key metricKey) *counterEntry {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.counters[key]; ok {
		return e
	}
	e := &counterEntry{}
	sh.counters[key] = e
	return e
}

// Gauge sets the gauge identified by name and tags.  Concurrent writers
// race; the last physical write before the drain cutover wins.
func (r *Registry) Gauge(name string, tags gostatsc.Tags, value int64) {
	key := metricKey{name: name, tags: tags.Key()}
	sh := r.shard(key)

	sh.mu.RLock()
	e := sh.gauges[key]
	sh.mu.RUnlock()
	if e == nil {
		e = insertGauge(sh, key)
	}
	e.mu.Lock()
	e.value = value
	e.written = true
	e.mu.Unlock()
}

func insertGauge(sh *shard, key metricKey) *gaugeEntry {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.gauges[key]; ok {
		return e
	}
	e := &gaugeEntry{}
	sh.gauges[key] = e
	return e
}

// Histogram records value into the distribution identified by name and tags.
func (r *Registry) Histogram(name string, tags gostatsc.Tags, value int64) {
	key := metricKey{name: name, tags: tags.Key()}
	sh := r.shard(key)

	sh.mu.RLock()
	e := sh.histograms[key]
	sh.mu.RUnlock()
	if e == nil {
		e = r.insertHistogram(sh, key)
	}
	e.mu.Lock()
	e.hist.Record(value)
	e.mu.Unlock()
}

func (r *Registry) insertHistogram(sh *shard, key metricKey) *histogramEntry {
	cfg := r.configFor(key.name)
	hist := r.getSpare(cfg.SigFig)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.histograms[key]; ok {
		r.putSpare(hist)
		return e
	}
	e := &histogramEntry{hist: hist, config: cfg}
	sh.histograms[key] = e
	return e
}

func (r *Registry) getSpare(sigfig int) *histogram.Histogram {
	if h, ok := r.spares[sigfig].Get().(*histogram.Histogram); ok {
		return h
	}
	// sigfig was validated at construction, New cannot fail here.
	h, _ := histogram.New(sigfig)
	return h
}

func (r *Registry) putSpare(h *histogram.Histogram) {
	h.Reset()
	r.spares[h.SigFig()].Put(h)
}

// Drain extracts-and-resets the accumulated state of every key and feeds the
// snapshot to v.  A value recorded after a key's cutover is attributed to
// the next cycle, never split or duplicated.  Entries are reset in place,
// never destroyed, so hot keys keep their storage across cycles.  Recorders
// are only ever blocked for the time it takes to swap a single entry.
func (r *Registry) Drain(v Visitor) {
	for i := range r.shards {
		r.drainShard(&r.shards[i], v)
	}
}

type keyedCounter struct {
	key metricKey
	e   *counterEntry
}

type keyedGauge struct {
	key metricKey
	e   *gaugeEntry
}

type keyedHistogram struct {
	key metricKey
	e   *histogramEntry
}

func (r *Registry) drainShard(sh *shard, v Visitor) {
	// Collect entry pointers under a brief read lock, then snapshot each
	// entry with its own synchronization.  Inserts of new keys are only
	// delayed during the collection, not during serialization.
	sh.mu.RLock()
	counters := make([]keyedCounter, 0, len(sh.counters))
	for key, e := range sh.counters {
		counters = append(counters, keyedCounter{key: key, e: e})
	}
	gauges := make([]keyedGauge, 0, len(sh.gauges))
	for key, e := range sh.gauges {
		gauges = append(gauges, keyedGauge{key: key, e: e})
	}
	histograms := make([]keyedHistogram, 0, len(sh.histograms))
	for key, e := range sh.histograms {
		histograms = append(histograms, keyedHistogram{key: key, e: e})
	}
	sh.mu.RUnlock()

	for _, kc := range counters {
		if value := atomic.SwapInt64(&kc.e.value, 0); value != 0 {
			v.Counter(kc.key.name, kc.key.tags, value)
		}
	}
	for _, kg := range gauges {
		kg.e.mu.Lock()
		written := kg.e.written
		value := kg.e.value
		kg.e.written = false
		kg.e.mu.Unlock()
		if written {
			v.Gauge(kg.key.name, kg.key.tags, value)
		}
	}
	for _, kh := range histograms {
		kh.e.mu.Lock()
		hist := kh.e.hist
		if hist.TotalCount() == 0 {
			kh.e.mu.Unlock()
			continue
		}
		kh.e.hist = r.getSpare(hist.SigFig())
		kh.e.mu.Unlock()

		v.Histogram(kh.key.name, kh.key.tags, hist, kh.e.config)
		r.putSpare(hist)
	}
}
