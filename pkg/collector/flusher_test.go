package collector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostatsc/gostatsc/internal/fixtures"
	"github.com/gostatsc/gostatsc/pkg/writer"
)

// bufferingWriter holds accepted packets until Flush, like a pipelining
// custom backend would.
type bufferingWriter struct {
	buffered [][]byte
	sent     [][]byte
	failNext bool
	resets   int
}

func (w *bufferingWriter) Write(packets [][]byte) (int, error) {
	var n int
	for _, p := range packets {
		w.buffered = append(w.buffered, p)
		n += len(p)
	}
	return n, nil
}

func (w *bufferingWriter) Flush() (int, error) {
	if w.failNext {
		w.failNext = false
		return 0, errors.New("send failed")
	}
	var n int
	for _, p := range w.buffered {
		w.sent = append(w.sent, p)
		n += len(p)
	}
	w.buffered = nil
	return n, nil
}

func (w *bufferingWriter) Reset() {
	w.resets++
	w.buffered = nil
}

func (w *bufferingWriter) TakesOwnership() bool {
	return true
}

func TestFlusherDropsFailedBatch(t *testing.T) {
	t.Parallel()
	w := &bufferingWriter{failNext: true}
	r := newTestRegistry(nil)
	b := writer.NewBatcher(w, DefaultMaxUDPPacketSize, DefaultMaxUDPBatchSize)
	fl := newFlusher(0, r, nil, b, fixtures.NewTestLogger(t))
	fl.serializer = NewSerializer("", b, fl.reportError)

	r.Count("requests", nil, 1)
	fl.flush()
	require.Equal(t, 1, w.resets)
	assert.Empty(t, w.sent)

	// The failed batch is gone; only the new cycle's data goes out.
	r.Count("requests", nil, 1)
	fl.flush()
	require.Len(t, w.sent, 1)
	assert.Equal(t, "requests:1|c\n", string(w.sent[0]))
	assert.Equal(t, 1, w.resets)
}
