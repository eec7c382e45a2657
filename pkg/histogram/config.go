package histogram

import (
	"fmt"
)

const (
	// SigFigMax is the largest supported number of significant figures.
	SigFigMax = 5
	// SigFigDefault is the precision used when no configuration matches.
	SigFigDefault = 3
)

// Names of the base statistics a histogram can emit.
const (
	StatCount = "count"
	StatMin   = "min"
	StatAvg   = "avg"
	StatMax   = "max"
)

// DefaultPercentiles is used when a Config does not request any.
var DefaultPercentiles = []float64{95}

// Config controls per metric-name histogram precision and which statistics
// are emitted on flush.  The zero value of Stats and Percentiles enables
// everything, so an entry like {"sig_fig": 2} is valid configuration.
type Config struct {
	// SigFig bounds the relative representation error to 10^-SigFig.
	SigFig int `json:"sig_fig"`
	// Stats is the subset of {count, min, avg, max} to emit.  Empty
	// enables all four.
	Stats []string `json:"stats"`
	// Percentiles to emit, each in (0, 100].  Nil uses DefaultPercentiles.
	Percentiles []float64 `json:"percentiles"`
}

// DefaultConfig returns the configuration applied to metrics without an
// explicit entry.
func DefaultConfig() Config {
	return Config{SigFig: SigFigDefault}
}

// Validate checks the configuration.  It is called at collector
// construction; an invalid configuration is fatal to construction.
func (c Config) Validate() error {
	if c.SigFig < 0 || c.SigFig > SigFigMax {
		return fmt.Errorf("invalid sigfig %d: must be between 0 and %d", c.SigFig, SigFigMax)
	}
	for _, s := range c.Stats {
		switch s {
		case StatCount, StatMin, StatAvg, StatMax:
		default:
			return fmt.Errorf("unknown histogram stat %q", s)
		}
	}
	for _, p := range c.Percentiles {
		if p <= 0 || p > 100 {
			return fmt.Errorf("invalid percentile %v: must be in (0, 100]", p)
		}
	}
	return nil
}

// WantStat reports whether the named base statistic should be emitted.
func (c Config) WantStat(name string) bool {
	if len(c.Stats) == 0 {
		return true
	}
	for _, s := range c.Stats {
		if s == name {
			return true
		}
	}
	return false
}

// WantedPercentiles returns the percentiles to emit.
func (c Config) WantedPercentiles() []float64 {
	if c.Percentiles == nil {
		return DefaultPercentiles
	}
	return c.Percentiles
}
