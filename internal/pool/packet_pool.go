// Package pool provides typed sync.Pool wrappers.
package pool

import (
	"sync"
)

// PacketPool recycles packet payload buffers of a fixed capacity.
type PacketPool struct {
	p sync.Pool
}

// NewPacketPool creates a PacketPool handing out buffers with the given
// capacity and zero length.
func NewPacketPool(capacity int) *PacketPool {
	return &PacketPool{
		p: sync.Pool{
			New: func() interface{} {
				return make([]byte, 0, capacity)
			},
		},
	}
}

// Get returns an empty buffer.
func (p *PacketPool) Get() []byte {
	return p.p.Get().([]byte)
}

// Put returns a buffer to the pool.  The caller must not use it afterwards.
func (p *PacketPool) Put(buf []byte) {
	p.p.Put(buf[:0]) //nolint:staticcheck
}
