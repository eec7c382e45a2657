package collector

import (
	"strconv"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/pkg/histogram"
)

// lineSink consumes serialized wire lines.  writer.Batcher satisfies it.
type lineSink interface {
	AppendLine(line []byte) error
}

// Serializer renders drained aggregates into statsd wire lines and hands
// them to a sink.  It implements Visitor and is driven from the flush path
// only, so a single reusable scratch buffer is enough.
type Serializer struct {
	prefix  string
	sink    lineSink
	onError func(error)

	line []byte
	// Formatted ".pNN" suffixes, built once per distinct percentile.
	pctSuffix map[float64]string
}

// NewSerializer creates a Serializer.  onError is invoked for every line the
// sink rejects; serialization continues with the next line.
func NewSerializer(prefix string, sink lineSink, onError func(error)) *Serializer {
	return &Serializer{
		prefix:    prefix,
		sink:      sink,
		onError:   onError,
		line:      make([]byte, 0, 256),
		pctSuffix: make(map[float64]string),
	}
}

func (s *Serializer) Counter(name, tags string, value int64) {
	s.begin(name, "")
	s.line = strconv.AppendInt(s.line, value, 10)
	s.finish(gostatsc.COUNTER, tags)
}

func (s *Serializer) Gauge(name, tags string, value int64) {
	s.begin(name, "")
	s.line = strconv.AppendInt(s.line, value, 10)
	s.finish(gostatsc.GAUGE, tags)
}

func (s *Serializer) Histogram(name, tags string, hist *histogram.Histogram, config histogram.Config) {
	if config.WantStat(histogram.StatCount) {
		s.begin(name, ".count")
		s.line = strconv.AppendInt(s.line, hist.TotalCount(), 10)
		s.finish(gostatsc.HISTOGRAM, tags)
	}
	if config.WantStat(histogram.StatMin) {
		s.begin(name, ".min")
		s.line = strconv.AppendUint(s.line, hist.Min(), 10)
		s.finish(gostatsc.HISTOGRAM, tags)
	}
	if config.WantStat(histogram.StatAvg) {
		s.begin(name, ".avg")
		s.line = strconv.AppendFloat(s.line, hist.Mean(), 'f', -1, 64)
		s.finish(gostatsc.HISTOGRAM, tags)
	}
	if config.WantStat(histogram.StatMax) {
		s.begin(name, ".max")
		s.line = strconv.AppendUint(s.line, hist.Max(), 10)
		s.finish(gostatsc.HISTOGRAM, tags)
	}
	for _, pct := range config.WantedPercentiles() {
		s.begin(name, s.percentileSuffix(pct))
		s.line = strconv.AppendUint(s.line, hist.Percentile(pct), 10)
		s.finish(gostatsc.HISTOGRAM, tags)
	}
}

func (s *Serializer) percentileSuffix(pct float64) string {
	if suffix, ok := s.pctSuffix[pct]; ok {
		return suffix
	}
	suffix := ".p" + strconv.FormatFloat(pct, 'f', -1, 64)
	s.pctSuffix[pct] = suffix
	return suffix
}

func (s *Serializer) begin(name, suffix string) {
	s.line = s.line[:0]
	s.line = append(s.line, s.prefix...)
	s.line = append(s.line, name...)
	s.line = append(s.line, suffix...)
	s.line = append(s.line, ':')
}

func (s *Serializer) finish(typ gostatsc.MetricType, tags string) {
	s.line = append(s.line, '|', typ.WireType())
	if tags != "" {
		s.line = append(s.line, '|', '#')
		s.line = append(s.line, tags...)
	}
	s.line = append(s.line, '\n')
	if err := s.sink.AppendLine(s.line); err != nil {
		s.onError(err)
	}
}
