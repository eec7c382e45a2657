package writer

import (
	"io"
)

// Conn is the subset of net.Conn the Simple backend needs.
type Conn interface {
	io.Writer
}

// Simple sends each packet with an individual write call.  It works with any
// connected socket and is the portable default.
type Simple struct {
	conn Conn
}

// NewSimple creates a Simple backend on top of conn.
func NewSimple(conn Conn) *Simple {
	return &Simple{conn: conn}
}

// Write sends every packet, continuing past per-packet failures.  It returns
// the bytes accepted and the first error encountered.
func (s *Simple) Write(packets [][]byte) (int, error) {
	var sent int
	var firstErr error
	for _, p := range packets {
		n, err := s.conn.Write(p)
		sent += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return sent, firstErr
}

// Flush is a no-op; Simple buffers nothing.
func (s *Simple) Flush() (int, error) {
	return 0, nil
}

// Reset is a no-op.
func (s *Simple) Reset() {}

// TakesOwnership reports that packets are only borrowed for the write call.
func (s *Simple) TakesOwnership() bool {
	return false
}
