// Package histogram implements a compact, mergeable value distribution with
// a configurable bounded relative error.
//
// Values are compressed with a two level bucketing scheme: a coarse bucket
// selected by floor(log2(v)) and linearly sized sub-buckets within the
// coarse range.  The sub-bucket count is derived from the configured number
// of significant figures so that the midpoint of any bucket is within
// 10^-sigfig of every value the bucket can hold, independent of magnitude.
package histogram

import (
	"fmt"
	"math"
	"math/bits"
)

// Histogram accumulates int64 samples.  It is not safe for concurrent use;
// callers are expected to synchronize externally.
type Histogram struct {
	sigfig int

	subBucketCount     int
	subBucketHalfCount int
	subBucketCountMag  uint // ceil(log2(subBucketCount))
	subBucketHalfMag   uint
	subBucketMask      uint64

	counts     []int64
	totalCount int64

	// min/max/sum are tracked exactly, not bucket-approximated.
	min uint64
	max uint64
	sum uint64
}

// New creates a Histogram with the given number of significant figures
// (0..5).  Higher values increase precision and memory usage.
func New(sigfig int) (*Histogram, error) {
	if sigfig < 0 || sigfig > SigFigMax {
		return nil, fmt.Errorf("invalid sigfig %d: must be between 0 and %d", sigfig, SigFigMax)
	}
	// Smallest power of two able to hold 2*10^sigfig sub-buckets.
	largest := 2 * pow10(sigfig)
	mag := uint(bits.Len64(largest - 1))
	h := &Histogram{
		sigfig:             sigfig,
		subBucketCount:     1 << mag,
		subBucketHalfCount: 1 << (mag - 1),
		subBucketCountMag:  mag,
		subBucketHalfMag:   mag - 1,
		subBucketMask:      (1 << mag) - 1,
	}
	h.min = math.MaxUint64
	return h, nil
}

func pow10(n int) uint64 {
	v := uint64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// SigFig returns the configured number of significant figures.
func (h *Histogram) SigFig() int {
	return h.sigfig
}

// Record adds a sample.  Zero and negative values are clamped to the lowest
// representable bucket so that the recording path has no failure branch.
func (h *Histogram) Record(value int64) {
	if value < 1 {
		value = 1
	}
	v := uint64(value)
	if v < h.min {
		h.min = v
	}
	if v > h.max {
		h.max = v
	}
	h.sum += v
	h.totalCount++

	idx := h.countsIndex(v)
	if idx >= len(h.counts) {
		h.counts = append(h.counts, make([]int64, idx+1-len(h.counts))...)
	}
	h.counts[idx]++
}

func (h *Histogram) countsIndex(v uint64) int {
	bucketIdx := bits.Len64(v|h.subBucketMask) - int(h.subBucketCountMag)
	subBucketIdx := int(v >> uint(bucketIdx))
	base := (bucketIdx + 1) << h.subBucketHalfMag
	return base + subBucketIdx - h.subBucketHalfCount
}

// valueAtIndex returns the representative midpoint of the bucket at idx.
func (h *Histogram) valueAtIndex(idx int) uint64 {
	bucketIdx := (idx >> h.subBucketHalfMag) - 1
	subBucketIdx := (idx & (h.subBucketHalfCount - 1)) + h.subBucketHalfCount
	if bucketIdx < 0 {
		subBucketIdx -= h.subBucketHalfCount
		bucketIdx = 0
	}
	lowest := uint64(subBucketIdx) << uint(bucketIdx)
	size := uint64(1) << uint(bucketIdx)
	return lowest + size/2
}

// TotalCount returns the exact number of recorded samples.
func (h *Histogram) TotalCount() int64 {
	return h.totalCount
}

// Min returns the exact smallest recorded sample, after clamping.
// It returns 0 when the histogram is empty.
func (h *Histogram) Min() uint64 {
	if h.totalCount == 0 {
		return 0
	}
	return h.min
}

// Max returns the exact largest recorded sample, after clamping.
func (h *Histogram) Max() uint64 {
	return h.max
}

// Sum returns the exact running sum of recorded samples.
func (h *Histogram) Sum() uint64 {
	return h.sum
}

// Mean returns the average computed from the exact sum and count, never from
// bucket midpoints.  It returns 0 when the histogram is empty.
func (h *Histogram) Mean() float64 {
	if h.totalCount == 0 {
		return 0
	}
	return float64(h.sum) / float64(h.totalCount)
}

// Percentile returns the bucket midpoint at the requested percentile
// (0 < pct <= 100).  The returned value is never a raw input, and its
// relative error is bounded by the configured significant figures.
func (h *Histogram) Percentile(pct float64) uint64 {
	if h.totalCount == 0 {
		return 0
	}
	rank := int64(math.Ceil(pct / 100 * float64(h.totalCount)))
	if rank < 1 {
		rank = 1
	}
	if rank > h.totalCount {
		rank = h.totalCount
	}
	var cum int64
	for i, c := range h.counts {
		cum += c
		if cum >= rank {
			return h.valueAtIndex(i)
		}
	}
	// Unreachable while counts and totalCount agree.
	return h.valueAtIndex(len(h.counts) - 1)
}

// Merge adds every bucket of other into h.  The operation is commutative and
// associative, so sharded histograms can be combined in any order at drain
// time.  Both histograms must share the same precision.
func (h *Histogram) Merge(other *Histogram) error {
	if other.sigfig != h.sigfig {
		return fmt.Errorf("cannot merge histograms with sigfig %d and %d", other.sigfig, h.sigfig)
	}
	if len(other.counts) > len(h.counts) {
		h.counts = append(h.counts, make([]int64, len(other.counts)-len(h.counts))...)
	}
	for i, c := range other.counts {
		h.counts[i] += c
	}
	h.totalCount += other.totalCount
	h.sum += other.sum
	if other.totalCount > 0 {
		if other.min < h.min {
			h.min = other.min
		}
		if other.max > h.max {
			h.max = other.max
		}
	}
	return nil
}

// Reset clears all recorded state.  The bucket storage is retained so that
// hot histograms do not reallocate every flush cycle.
func (h *Histogram) Reset() {
	for i := range h.counts {
		h.counts[i] = 0
	}
	h.totalCount = 0
	h.min = math.MaxUint64
	h.max = 0
	h.sum = 0
}
