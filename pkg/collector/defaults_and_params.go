package collector

import (
	"fmt"
	"net"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/pkg/histogram"
	"github.com/gostatsc/gostatsc/pkg/writer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultMaxUDPPacketSize fits a 1500 byte MTU with headroom for the
	// IP and UDP headers.
	DefaultMaxUDPPacketSize = 1432
	// DefaultMaxUDPBatchSize is the default number of packets per batch.
	DefaultMaxUDPBatchSize = 10
	// DefaultFlushInterval is the default automatic flush period.
	DefaultFlushInterval = 10 * time.Second
	// DefaultStatsPrefix is the default metric name prefix.
	DefaultStatsPrefix = ""
	// DefaultWriterType is the default transport backend.
	DefaultWriterType = WriterSimple
	// DefaultDestinationAddr is the default statsd server address.
	DefaultDestinationAddr = "127.0.0.1:8125"
)

const (
	// ParamMaxUDPPacketSize is the name of the MaxUDPPacketSize parameter.
	ParamMaxUDPPacketSize = "max-udp-packet-size"
	// ParamMaxUDPBatchSize is the name of the MaxUDPBatchSize parameter.
	ParamMaxUDPBatchSize = "max-udp-batch-size"
	// ParamFlushInterval is the name of the FlushInterval parameter.
	ParamFlushInterval = "flush-interval"
	// ParamFlushAligned is the name of the FlushAligned parameter.
	ParamFlushAligned = "flush-aligned"
	// ParamFlushOffset is the name of the FlushOffset parameter.
	ParamFlushOffset = "flush-offset"
	// ParamStatsPrefix is the name of the StatsPrefix parameter.
	ParamStatsPrefix = "stats-prefix"
	// ParamWriterType is the name of the writer type parameter.
	ParamWriterType = "writer-type"
	// ParamHistogramConfigs is the name of the histogram configs parameter.
	ParamHistogramConfigs = "histogram-configs"
	// ParamDefaultSigFig is the name of the DefaultSigFig parameter.
	ParamDefaultSigFig = "default-sig-fig"
	// ParamDestinationAddr is the name of the destination address parameter.
	ParamDestinationAddr = "destination-addr"
)

// Writer backend names accepted by ParamWriterType.
const (
	// WriterSimple sends one packet per write call.  Portable.
	WriterSimple = "simple"
	// WriterBatched sends many packets per syscall via sendmmsg.
	WriterBatched = "batched"
)

// AddFlags adds relevant flags to the FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.Int(ParamMaxUDPPacketSize, DefaultMaxUDPPacketSize, "Maximum size of a UDP packet payload")
	fs.Int(ParamMaxUDPBatchSize, DefaultMaxUDPBatchSize, "Maximum number of packets per send batch")
	fs.Duration(ParamFlushInterval, DefaultFlushInterval, "How often to flush aggregated metrics, 0 to disable the timer")
	fs.Bool(ParamFlushAligned, false, "Align the flush cycle to wall clock interval boundaries")
	fs.Duration(ParamFlushOffset, 0, "Offset of the aligned flush boundary")
	fs.String(ParamStatsPrefix, DefaultStatsPrefix, "Prefix prepended to every metric name")
	fs.String(ParamWriterType, DefaultWriterType, fmt.Sprintf("Transport backend, one of %q or %q", WriterSimple, WriterBatched))
	fs.String(ParamHistogramConfigs, "", `Per metric histogram configuration as JSON, e.g. {"latency":{"sig_fig":2,"percentiles":[50,99]}}. An omitted sig_fig uses the default`)
	fs.Int(ParamDefaultSigFig, histogram.SigFigDefault, "Histogram significant figures for metrics without explicit configuration (0..5)")
	fs.String(ParamDestinationAddr, DefaultDestinationAddr, "UDP address of the statsd server")
}

// NewCollectorFromViper builds a Collector wired to a UDP socket from the
// provided configuration.  The socket is owned by the Collector and is
// closed when Run returns.
func NewCollectorFromViper(v *viper.Viper, logger logrus.FieldLogger) (*Collector, error) {
	v.SetDefault(ParamMaxUDPPacketSize, DefaultMaxUDPPacketSize)
	v.SetDefault(ParamMaxUDPBatchSize, DefaultMaxUDPBatchSize)
	v.SetDefault(ParamFlushInterval, DefaultFlushInterval)
	v.SetDefault(ParamStatsPrefix, DefaultStatsPrefix)
	v.SetDefault(ParamWriterType, DefaultWriterType)
	v.SetDefault(ParamDefaultSigFig, histogram.SigFigDefault)
	v.SetDefault(ParamDestinationAddr, DefaultDestinationAddr)

	defaultSigFig := v.GetInt(ParamDefaultSigFig)
	configs, err := parseHistogramConfigs(v.GetString(ParamHistogramConfigs), defaultSigFig)
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial("udp", v.GetString(ParamDestinationAddr))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %q: %w", v.GetString(ParamDestinationAddr), err)
	}

	var w gostatsc.PacketWriter
	switch wt := v.GetString(ParamWriterType); wt {
	case WriterSimple:
		w = writer.NewSimple(conn)
	case WriterBatched:
		udpConn, ok := conn.(*net.UDPConn)
		if !ok {
			_ = conn.Close()
			return nil, fmt.Errorf("batched writer requires a UDP socket, got %T", conn)
		}
		w = writer.NewBatch(udpConn)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("unknown writer type %q", wt)
	}

	c, err := NewCollector(Options{
		MaxUDPPacketSize: v.GetInt(ParamMaxUDPPacketSize),
		MaxUDPBatchSize:  v.GetInt(ParamMaxUDPBatchSize),
		FlushInterval:    v.GetDuration(ParamFlushInterval),
		FlushAligned:     v.GetBool(ParamFlushAligned),
		FlushOffset:      v.GetDuration(ParamFlushOffset),
		StatsPrefix:      v.GetString(ParamStatsPrefix),
		Writer:           w,
		HistogramConfigs: configs,
		DefaultSigFig:    defaultSigFig,
		Logger:           logger,
		Closer:           conn,
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// parseHistogramConfigs decodes the JSON histogram configuration.  Entries
// that omit sig_fig inherit defaultSigFig.
func parseHistogramConfigs(raw string, defaultSigFig int) (map[string]histogram.Config, error) {
	if raw == "" {
		return nil, nil
	}
	var configs map[string]histogram.Config
	if err := json.UnmarshalFromString(raw, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ParamHistogramConfigs, err)
	}
	for name, cfg := range configs {
		if cfg.SigFig == 0 {
			cfg.SigFig = defaultSigFig
			configs[name] = cfg
		}
	}
	return configs, nil
}
