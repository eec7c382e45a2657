package gostatsc

// PacketWriter is the capability contract for transport backends.  The
// collector core never assumes network semantics from an implementation;
// an in-memory buffer is a valid backend.
//
// A backend is selected once at construction and is only ever driven from
// the flush path, never concurrently.
type PacketWriter interface {
	// Write sends a batch of packets.  Each packet is one independent
	// datagram.  It returns the number of payload bytes accepted by the
	// underlying transport.  Implementations should attempt the whole
	// batch and report the first error encountered.
	Write(packets [][]byte) (int, error)

	// Flush pushes out any internally buffered data and returns the number
	// of bytes sent by the call.
	Flush() (int, error)

	// Reset discards any internally buffered data.  It is invoked after a
	// failed flush cycle so a buffering backend never retries a failed
	// batch.
	Reset()

	// TakesOwnership reports whether the backend keeps the packet slices
	// passed to Write.  When it returns false the backend only borrows
	// them for the duration of the call and the caller is free to reuse
	// the buffers afterwards; when it returns true the caller must hand
	// over fresh buffers every time.
	TakesOwnership() bool
}
