package seqcastserver

import (
	"net/netip"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry is the set of admitted client addresses of a session, kept in
// admission order.
//
// A Registry is owned by the server's control loop and is not safe for
// concurrent use.
type Registry struct {
	clients *orderedmap.OrderedMap[netip.AddrPort, time.Time]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: orderedmap.New[netip.AddrPort, time.Time](),
	}
}

// Add admits addr at the given time. Returns false (and leaves the registry
// unchanged) if addr was already admitted.
func (r *Registry) Add(addr netip.AddrPort, admitted time.Time) bool {
	if _, ok := r.clients.Get(addr); ok {
		return false
	}
	r.clients.Set(addr, admitted)
	return true
}

// Has returns true if addr was admitted.
func (r *Registry) Has(addr netip.AddrPort) bool {
	_, ok := r.clients.Get(addr)
	return ok
}

// AdmittedAt returns the time addr was admitted.
func (r *Registry) AdmittedAt(addr netip.AddrPort) (time.Time, bool) {
	return r.clients.Get(addr)
}

// Len returns the number of admitted clients.
func (r *Registry) Len() int {
	return r.clients.Len()
}

// AppendSnapshot appends the admitted addresses, in admission order, to dst.
func (r *Registry) AppendSnapshot(dst []netip.AddrPort) []netip.AddrPort {
	for pair := r.clients.Oldest(); pair != nil; pair = pair.Next() {
		dst = append(dst, pair.Key)
	}
	return dst
}

// Snapshot returns a copy of the admitted addresses in admission order.
func (r *Registry) Snapshot() []netip.AddrPort {
	return r.AppendSnapshot(make([]netip.AddrPort, 0, r.Len()))
}
