package writer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostatsc/gostatsc/internal/fakesocket"
)

func TestBatchWrite(t *testing.T) {
	t.Parallel()
	conn := fakesocket.NewFakeBatchConn()
	b := NewBatchConn(conn)

	sent, err := b.Write([][]byte{[]byte("first"), []byte("second"), []byte("third")})
	require.NoError(t, err)
	assert.Equal(t, 16, sent)
	packets := conn.Packets()
	require.Len(t, packets, 3)
	assert.Equal(t, "first", string(packets[0]))
	assert.Equal(t, "second", string(packets[1]))
	assert.Equal(t, "third", string(packets[2]))
}

func TestBatchWriteResumesAfterPartialSend(t *testing.T) {
	t.Parallel()
	conn := fakesocket.NewFakeBatchConn()
	conn.MaxPerCall = 1
	b := NewBatchConn(conn)

	sent, err := b.Write([][]byte{[]byte("first"), []byte("second"), []byte("third")})
	require.NoError(t, err)
	assert.Equal(t, 16, sent)
	assert.Len(t, conn.Packets(), 3)
}

func TestBatchWriteReportsUndeliveredRemainder(t *testing.T) {
	t.Parallel()
	conn := fakesocket.NewFakeBatchConn()
	conn.Stall = 1
	b := NewBatchConn(conn)

	sent, err := b.Write([][]byte{[]byte("first"), []byte("second"), []byte("third")})
	require.Error(t, err)
	assert.Equal(t, 5, sent)
	assert.Len(t, conn.Packets(), 1)
}

func TestBatchDoesNotTakeOwnership(t *testing.T) {
	t.Parallel()
	b := NewBatchConn(fakesocket.NewFakeBatchConn())
	assert.False(t, b.TakesOwnership())
	sent, err := b.Flush()
	require.NoError(t, err)
	assert.Zero(t, sent)
}
