package gostatsc

// MetricType is an enumeration of all the possible types of Metric.
type MetricType byte

const (
	_ = iota
	// COUNTER is a monotonically accumulated delta, summed between drains.
	COUNTER MetricType = iota
	// GAUGE is a point-in-time value, last write before a drain wins.
	GAUGE
	// HISTOGRAM is a value distribution, compressed client-side.
	HISTOGRAM
)

func (m MetricType) String() string {
	switch m {
	case COUNTER:
		return "counter"
	case GAUGE:
		return "gauge"
	case HISTOGRAM:
		return "histogram"
	}
	return "unknown"
}

// WireType returns the statsd line type token for the metric type.
// Histogram-derived statistic lines all carry the "h" token.
func (m MetricType) WireType() byte {
	switch m {
	case COUNTER:
		return 'c'
	case GAUGE:
		return 'g'
	case HISTOGRAM:
		return 'h'
	}
	return '?'
}
