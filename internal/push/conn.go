package push

import (
	"errors"
	"sync"
)

// ErrConnClosed is returned by Send after the connection is torn down.
var ErrConnClosed = errors.New("push connection closed")

// ErrSlowConsumer is returned when the outbound channel is full; the hub
// treats it like any other write failure and drops the connection.
var ErrSlowConsumer = errors.New("push connection backed up")

// StreamConn adapts a long-lived HTTP response stream to the hub's Conn
// interface. The hub goroutines hand frames to the channel; the handler
// goroutine owning the response writer drains it.
type StreamConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewStreamConn builds a connection with a small outbound buffer.
func NewStreamConn() *StreamConn {
	return &StreamConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

// Send queues a frame without blocking the broadcaster.
func (c *StreamConn) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.frames <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

// Close signals the writer goroutine to stop. Safe to call repeatedly.
func (c *StreamConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Frames is drained by the handler goroutine that owns the response writer.
func (c *StreamConn) Frames() <-chan []byte {
	return c.frames
}

// Done is closed when the connection has been torn down or evicted.
func (c *StreamConn) Done() <-chan struct{} {
	return c.done
}
