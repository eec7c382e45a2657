package histogram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidSigFig(t *testing.T) {
	t.Parallel()
	for _, sigfig := range []int{-1, 6, 100} {
		_, err := New(sigfig)
		assert.Error(t, err, "sigfig %d", sigfig)
	}
	for sigfig := 0; sigfig <= SigFigMax; sigfig++ {
		_, err := New(sigfig)
		assert.NoError(t, err, "sigfig %d", sigfig)
	}
}

func TestRecordClampsNonPositive(t *testing.T) {
	t.Parallel()
	h, err := New(3)
	require.NoError(t, err)
	h.Record(0)
	h.Record(-100)
	assert.EqualValues(t, 2, h.TotalCount())
	assert.EqualValues(t, 1, h.Min())
	assert.EqualValues(t, 1, h.Max())
	assert.EqualValues(t, 2, h.Sum())
}

func TestExactStatistics(t *testing.T) {
	t.Parallel()
	h, err := New(2)
	require.NoError(t, err)
	h.Record(100)
	h.Record(200)
	h.Record(300)
	assert.EqualValues(t, 3, h.TotalCount())
	assert.EqualValues(t, 100, h.Min())
	assert.EqualValues(t, 300, h.Max())
	assert.EqualValues(t, 600, h.Sum())
	assert.InDelta(t, 200, h.Mean(), 0.0001)
}

func TestPercentileRanks(t *testing.T) {
	t.Parallel()
	h, err := New(2)
	require.NoError(t, err)
	h.Record(100)
	h.Record(200)
	h.Record(300)
	// 100 and 200 fall in exact buckets at this precision, 300 lands in a
	// two wide bucket whose midpoint is 301.
	assert.EqualValues(t, 100, h.Percentile(1))
	assert.EqualValues(t, 200, h.Percentile(50))
	assert.EqualValues(t, 301, h.Percentile(95))
	assert.EqualValues(t, 301, h.Percentile(100))
}

func TestPercentileErrorBound(t *testing.T) {
	t.Parallel()
	values := []int64{1, 7, 123, 999, 12345, 1000000, 987654321}
	for sigfig := 0; sigfig <= SigFigMax; sigfig++ {
		for _, v := range values {
			h, err := New(sigfig)
			require.NoError(t, err)
			h.Record(v)
			got := h.Percentile(100)
			relErr := math.Abs(float64(got)-float64(v)) / float64(v)
			assert.LessOrEqual(t, relErr, math.Pow(10, -float64(sigfig)),
				"sigfig %d value %d got %d", sigfig, v, got)
		}
	}
}

func TestPercentileEmpty(t *testing.T) {
	t.Parallel()
	h, err := New(3)
	require.NoError(t, err)
	assert.EqualValues(t, 0, h.Percentile(95))
	assert.EqualValues(t, 0, h.Min())
	assert.EqualValues(t, 0, h.Max())
	assert.InDelta(t, 0, h.Mean(), 0.0001)
}

func TestMerge(t *testing.T) {
	t.Parallel()
	h1, err := New(3)
	require.NoError(t, err)
	h2, err := New(3)
	require.NoError(t, err)
	h1.Record(10)
	h1.Record(20)
	h2.Record(5)
	h2.Record(4000)

	require.NoError(t, h1.Merge(h2))
	assert.EqualValues(t, 4, h1.TotalCount())
	assert.EqualValues(t, 5, h1.Min())
	assert.EqualValues(t, 4000, h1.Max())
	assert.EqualValues(t, 4035, h1.Sum())
	assert.EqualValues(t, 5, h1.Percentile(1))
}

func TestMergeEmptyKeepsMinMax(t *testing.T) {
	t.Parallel()
	h1, err := New(3)
	require.NoError(t, err)
	h2, err := New(3)
	require.NoError(t, err)
	h1.Record(42)
	require.NoError(t, h1.Merge(h2))
	assert.EqualValues(t, 1, h1.TotalCount())
	assert.EqualValues(t, 42, h1.Min())
	assert.EqualValues(t, 42, h1.Max())
}

func TestMergeMismatchedPrecision(t *testing.T) {
	t.Parallel()
	h1, err := New(3)
	require.NoError(t, err)
	h2, err := New(2)
	require.NoError(t, err)
	assert.Error(t, h1.Merge(h2))
}

func TestReset(t *testing.T) {
	t.Parallel()
	h, err := New(3)
	require.NoError(t, err)
	h.Record(10)
	h.Record(500)
	h.Reset()
	assert.EqualValues(t, 0, h.TotalCount())
	assert.EqualValues(t, 0, h.Min())
	assert.EqualValues(t, 0, h.Max())
	assert.EqualValues(t, 0, h.Sum())

	h.Record(7)
	assert.EqualValues(t, 1, h.TotalCount())
	assert.EqualValues(t, 7, h.Min())
	assert.EqualValues(t, 7, h.Max())
	assert.EqualValues(t, 7, h.Percentile(100))
}
