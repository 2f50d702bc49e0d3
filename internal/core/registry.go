package core

import "github.com/puzpuzpuz/xsync/v3"

// Registry holds every connected participant, keyed by connection id.
type Registry struct {
	conns *xsync.MapOf[string, *Conn]
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: xsync.NewMapOf[string, *Conn]()}
}

// Register stores c. It returns false and changes nothing if the id is taken.
func (r *Registry) Register(c *Conn) bool {
	_, loaded := r.conns.LoadOrStore(c.ID, c)
	return !loaded
}

// Lookup returns the connection for id.
func (r *Registry) Lookup(id string) (*Conn, bool) {
	return r.conns.Load(id)
}

// Unregister removes id. Only the first call for an id reports true.
func (r *Registry) Unregister(id string) (*Conn, bool) {
	return r.conns.LoadAndDelete(id)
}

// Send delivers frame to id if it is still connected.
func (r *Registry) Send(id string, frame []byte) error {
	c, ok := r.conns.Load(id)
	if !ok {
		return ErrNotConnected
	}
	return c.Send(frame)
}

// Snapshot returns the connections registered at the time of the call.
func (r *Registry) Snapshot() []*Conn {
	out := make([]*Conn, 0, r.conns.Size())
	r.conns.Range(func(_ string, c *Conn) bool {
		out = append(out, c)
		return true
	})
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return r.conns.Size()
}
