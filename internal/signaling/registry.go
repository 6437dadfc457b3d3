// ABOUTME: In-memory registry mapping participant identities to live connections
// ABOUTME: Supports register, lookup, and remove-by-connection for disconnect cleanup

package signaling

import "sync"

// Conn is one participant's open message channel. Implementations must be
// comparable (pointer types), since disconnect cleanup finds the identity
// by comparing connection values.
type Conn interface {
	// Send writes one complete message to the participant. Implementations
	// serialize concurrent writers internally.
	Send(data []byte) error
}

// Registry maps participant identities to their live connections.
// The transport owns connection teardown; the registry only tracks entries.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
	}
}

// Register binds an identity to a connection. An existing entry for the
// same identity is silently replaced: last writer wins, which is what lets
// a participant reconnect under the same identity. The replaced connection
// simply stops being reachable.
func (r *Registry) Register(identity string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[identity] = conn
}

// Lookup returns the live connection for an identity, if any.
func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[identity]
	return conn, ok
}

// RemoveByConn removes the entry holding the given connection and returns
// its identity. At disconnect time the closing channel is the only handle
// available, hence the reverse lookup. Returns ok=false if the connection
// was never registered or was already replaced by a reconnect.
func (r *Registry) RemoveByConn(conn Conn) (identity string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.conns {
		if c == conn {
			delete(r.conns, id)
			return id, true
		}
	}
	return "", false
}

// IdentityOf returns the identity currently bound to the given connection.
func (r *Registry) IdentityOf(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, c := range r.conns {
		if c == conn {
			return id, true
		}
	}
	return "", false
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
