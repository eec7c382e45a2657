// Package fakesocket provides in-memory stand-ins for the network types the
// transport backends are built on.
package fakesocket

import (
	"sync"

	"golang.org/x/net/ipv4"
)

// FakeConn records every write.  It implements writer.Conn.
type FakeConn struct {
	mu      sync.Mutex
	packets [][]byte
	// Err, when set, is returned by every Write after recording.
	Err error
}

// NewFakeConn creates a FakeConn.
func NewFakeConn() *FakeConn {
	return &FakeConn{}
}

func (c *FakeConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, append([]byte(nil), b...))
	if c.Err != nil {
		return 0, c.Err
	}
	return len(b), nil
}

// Packets returns copies of everything written so far.
func (c *FakeConn) Packets() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.packets...)
}

// FakeBatchConn records batched writes.  It implements writer.BatchConn.
type FakeBatchConn struct {
	mu      sync.Mutex
	packets [][]byte
	// MaxPerCall caps how many messages a single WriteBatch accepts.
	// Zero means unlimited.
	MaxPerCall int
	// Stall caps the total number of messages ever accepted; once reached
	// WriteBatch accepts nothing and returns no error.
	Stall int
	// Err, when set, is returned by every WriteBatch.
	Err error
}

// NewFakeBatchConn creates a FakeBatchConn.
func NewFakeBatchConn() *FakeBatchConn {
	return &FakeBatchConn{}
}

func (c *FakeBatchConn) WriteBatch(ms []ipv4.Message, flags int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(ms)
	if c.MaxPerCall > 0 && n > c.MaxPerCall {
		n = c.MaxPerCall
	}
	if c.Stall > 0 {
		remaining := c.Stall - len(c.packets)
		if remaining < 0 {
			remaining = 0
		}
		if n > remaining {
			n = remaining
		}
	}
	for i := 0; i < n; i++ {
		var size int
		for _, buf := range ms[i].Buffers {
			c.packets = append(c.packets, append([]byte(nil), buf...))
			size += len(buf)
		}
		ms[i].N = size
	}
	if c.Err != nil {
		return n, c.Err
	}
	return n, nil
}

// Packets returns copies of everything written so far.
func (c *FakeBatchConn) Packets() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.packets...)
}

// CapturingWriter is an in-memory PacketWriter backend for pipeline tests.
type CapturingWriter struct {
	mu      sync.Mutex
	packets [][]byte
	resets  int
	// WriteErr, when set, is returned by every Write after recording.
	WriteErr error
}

// NewCapturingWriter creates a CapturingWriter.
func NewCapturingWriter() *CapturingWriter {
	return &CapturingWriter{}
}

func (w *CapturingWriter) Write(packets [][]byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var sent int
	for _, p := range packets {
		w.packets = append(w.packets, append([]byte(nil), p...))
		sent += len(p)
	}
	if w.WriteErr != nil {
		return 0, w.WriteErr
	}
	return sent, nil
}

func (w *CapturingWriter) Flush() (int, error) {
	return 0, nil
}

func (w *CapturingWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resets++
}

func (w *CapturingWriter) TakesOwnership() bool {
	return false
}

// Packets returns copies of everything written so far.
func (w *CapturingWriter) Packets() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.packets...)
}

// Resets returns how many times Reset was called.
func (w *CapturingWriter) Resets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resets
}
