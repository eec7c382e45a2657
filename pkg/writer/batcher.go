// Package writer implements packet assembly and the transport backends the
// collector flushes through.
package writer

import (
	"fmt"

	"github.com/gostatsc/gostatsc"
	"github.com/gostatsc/gostatsc/internal/pool"
)

// LineTooLargeError is returned by Batcher.AppendLine for a line that can
// never fit in a packet.  The line is dropped; batching continues.
type LineTooLargeError struct {
	Size  int
	Limit int
}

func (e *LineTooLargeError) Error() string {
	return fmt.Sprintf("metric line is larger than the maximum packet size: %d > %d", e.Size, e.Limit)
}

// Batcher greedily packs wire lines into packets no larger than
// maxPacketSize and hands full batches of maxBatchSize packets to the
// backend.  Lines are never split across packets.  It is driven from the
// flush path only and is not safe for concurrent use.
type Batcher struct {
	writer        gostatsc.PacketWriter
	maxPacketSize int
	maxBatchSize  int

	pool  *pool.PacketPool
	cur   []byte
	batch [][]byte
}

// NewBatcher creates a Batcher in front of w.
func NewBatcher(w gostatsc.PacketWriter, maxPacketSize, maxBatchSize int) *Batcher {
	return &Batcher{
		writer:        w,
		maxPacketSize: maxPacketSize,
		maxBatchSize:  maxBatchSize,
		pool:          pool.NewPacketPool(maxPacketSize),
		batch:         make([][]byte, 0, maxBatchSize),
	}
}

// AppendLine adds one wire line, sealing the current packet when the line
// would not fit and sending the batch when it reaches the batch size.  The
// line is copied; the caller keeps ownership of the slice.
func (b *Batcher) AppendLine(line []byte) error {
	if len(line) > b.maxPacketSize {
		return &LineTooLargeError{Size: len(line), Limit: b.maxPacketSize}
	}
	if len(b.cur)+len(line) > b.maxPacketSize {
		b.sealPacket()
	}
	if b.cur == nil {
		b.cur = b.pool.Get()
	}
	b.cur = append(b.cur, line...)
	if len(b.batch) >= b.maxBatchSize {
		_, err := b.writeBatch()
		return err
	}
	return nil
}

func (b *Batcher) sealPacket() {
	if len(b.cur) == 0 {
		return
	}
	b.batch = append(b.batch, b.cur)
	b.cur = nil
}

func (b *Batcher) writeBatch() (int, error) {
	if len(b.batch) == 0 {
		return 0, nil
	}
	sent, err := b.writer.Write(b.batch)
	if !b.writer.TakesOwnership() {
		for _, p := range b.batch {
			b.pool.Put(p)
		}
	}
	b.batch = b.batch[:0]
	return sent, err
}

// Flush seals the partial packet, sends everything pending and flushes the
// backend.  It returns the total number of bytes the cycle pushed out.
func (b *Batcher) Flush() (int, error) {
	b.sealPacket()
	sent, err := b.writeBatch()
	flushed, ferr := b.writer.Flush()
	sent += flushed
	if err == nil {
		err = ferr
	}
	return sent, err
}

// Reset discards all pending data in the batcher and the backend.
func (b *Batcher) Reset() {
	if b.cur != nil {
		b.pool.Put(b.cur)
		b.cur = nil
	}
	for _, p := range b.batch {
		b.pool.Put(p)
	}
	b.batch = b.batch[:0]
	b.writer.Reset()
}
