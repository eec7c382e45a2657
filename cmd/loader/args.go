package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

type commandOptions struct {
	Target        string `short:"a" long:"address"             default:"127.0.0.1:8125" description:"Address to send metrics"                `
	MetricPrefix  string `short:"p" long:"metric-prefix"       default:"loadtest."      description:"Metric name prefix"                     `
	Rate          uint   `short:"r" long:"rate"                default:"10000"          description:"Target recordings per second per worker"`
	Workers       uint   `short:"w" long:"workers"             default:"1"              description:"Number of parallel workers to use"      `
	FlushInterval uint   `          long:"flush-interval"      default:"1"              description:"Flush interval in seconds"              `
	Counts        struct {
		Counter   uint64 `short:"c" long:"counter-count"                                description:"Number of counters to record"           `
		Gauge     uint64 `short:"g" long:"gauge-count"                                  description:"Number of gauges to record"             `
		Histogram uint64 `short:"t" long:"histogram-count"                              description:"Number of histogram samples to record"  `
	} `group:"Metric count"`
	NameCard struct {
		Counter   uint `           long:"counter-cardinality"   default:"1"             description:"Cardinality of counter names"           `
		Gauge     uint `           long:"gauge-cardinality"     default:"1"             description:"Cardinality of gauge names"             `
		Histogram uint `           long:"histogram-cardinality" default:"1"             description:"Cardinality of histogram names"         `
	} `group:"Name cardinality"`
	TagCard struct {
		Counter   []uint `         long:"counter-tag-cardinality"                       description:"Cardinality of counter tags"            `
		Gauge     []uint `         long:"gauge-tag-cardinality"                         description:"Cardinality of gauge tags"              `
		Histogram []uint `         long:"histogram-tag-cardinality"                     description:"Cardinality of histogram tags"          `
	} `group:"Tag cardinality"`
	ValueLimit uint `              long:"value-limit"           default:"1000"          description:"Maximum recorded value"                 `
}

func parseArgs(args []string) commandOptions {
	var opts commandOptions
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "" + // because gofmt
		"Drives the in-process aggregation pipeline at a configurable rate.\n" +
		"The tag cardinality flags can be specified multiple times, and each tag\n" +
		"will be named tagN:M.  The maximum total key cardinality will be:\n\n" +
		"|name| * |tag1| * |tag2| * ... * |tagN|\n\n" +
		"Care should be taken to not cause a combinatorial explosion."

	positional, err := parser.ParseArgs(args)
	if err != nil {
		if !isHelp(err) {
			parser.WriteHelp(os.Stderr)
			_, _ = fmt.Fprintf(os.Stderr, "\n\nerror parsing command line: %v\n", err)
			os.Exit(1)
		}
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if len(positional) != 0 {
		// Near as I can tell there's no way to say no positional arguments allowed.
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nno positional arguments allowed\n")
		os.Exit(1)
	}

	if opts.Counts.Counter+opts.Counts.Gauge+opts.Counts.Histogram == 0 {
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nAt least one of counter-count, gauge-count, or histogram-count must be non-zero\n")
		os.Exit(1)
	}
	return opts
}

// isHelp tests the error from ParseArgs() to determine if the help message
// was requested.  It is safe to call without first checking that error is nil.
func isHelp(err error) bool {
	flagError, ok := err.(*flags.Error)
	if !ok {
		return false
	}
	return flagError.Type == flags.ErrHelp
}
