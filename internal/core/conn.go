package core

import "sync"

// Conn is a live signaling connection as seen by the core layer.
// The transport drains Outbound and writes frames to the socket.
type Conn struct {
	ID        string
	Room      string
	Identity  *Identity // nil for anonymous participants
	SessionID string

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id, room string, identity *Identity, sessionID string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		ID:        id,
		Room:      room,
		Identity:  identity,
		SessionID: sessionID,
		out:       make(chan []byte, buffer),
		done:      make(chan struct{}),
	}
}

// Send enqueues an encoded frame without blocking.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

// Outbound yields frames queued for the socket.
func (c *Conn) Outbound() <-chan []byte { return c.out }

// Done is closed once the connection is torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close marks the connection closed. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Anonymous reports whether no identity was verified for the connection.
func (c *Conn) Anonymous() bool { return c.Identity == nil }
