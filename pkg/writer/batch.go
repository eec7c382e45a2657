package writer

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// BatchConn is the subset of ipv4.PacketConn the Batch backend needs.  On
// Linux WriteBatch maps to a single sendmmsg call per invocation.
type BatchConn interface {
	WriteBatch(ms []ipv4.Message, flags int) (int, error)
}

// Batch sends many packets per syscall.  It requires a connected UDP socket.
type Batch struct {
	conn BatchConn
	msgs []ipv4.Message
}

// NewBatch creates a Batch backend on top of a connected UDP socket.
func NewBatch(conn *net.UDPConn) *Batch {
	return &Batch{conn: ipv4.NewPacketConn(conn)}
}

// NewBatchConn creates a Batch backend on top of an arbitrary BatchConn.
func NewBatchConn(conn BatchConn) *Batch {
	return &Batch{conn: conn}
}

// Write sends the packets with as few syscalls as the kernel allows,
// resuming after partial acceptance.  It returns the bytes accepted and the
// first error encountered.
func (b *Batch) Write(packets [][]byte) (int, error) {
	if cap(b.msgs) < len(packets) {
		b.msgs = make([]ipv4.Message, len(packets))
	}
	msgs := b.msgs[:len(packets)]
	for i, p := range packets {
		msgs[i].Buffers = [][]byte{p}
	}

	var sent int
	var firstErr error
	for accepted := 0; accepted < len(msgs); {
		n, err := b.conn.WriteBatch(msgs[accepted:], 0)
		for _, m := range msgs[accepted : accepted+n] {
			sent += m.N
		}
		accepted += n
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			accepted++ // skip the message that failed
			continue
		}
		if n == 0 {
			// A stalled transport leaves the remainder undelivered; that is
			// a drop and must surface as an error.
			if firstErr == nil {
				firstErr = fmt.Errorf("transport accepted %d of %d packets", accepted, len(msgs))
			}
			break
		}
	}
	for i := range msgs {
		msgs[i].Buffers = nil
	}
	return sent, firstErr
}

// Flush is a no-op; Batch buffers nothing across Write calls.
func (b *Batch) Flush() (int, error) {
	return 0, nil
}

// Reset is a no-op.
func (b *Batch) Reset() {}

// TakesOwnership reports that packets are only borrowed for the write call.
func (b *Batch) TakesOwnership() bool {
	return false
}
