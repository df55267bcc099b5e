package relay

import "github.com/sempicanha/commilink/internal/domain"

// Sender is the write half of a live client connection. Send encodes a
// message; SendRaw forwards already-encoded bytes untouched.
type Sender interface {
	Send(m *domain.Message) error
	SendRaw(raw []byte) error
}

// Registry tracks live connections and which identity, if any, has
// authenticated over each via HELLO. It is the only relay state that is
// not persisted: a restart starts with no one online.
type Registry struct {
	conns map[Sender]domain.Identity
	byID  map[domain.Identity]Sender
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[Sender]domain.Identity),
		byID:  make(map[domain.Identity]Sender),
	}
}

// Add registers a freshly accepted connection with no identity yet.
func (r *Registry) Add(c Sender) {
	if _, ok := r.conns[c]; !ok {
		r.conns[c] = ""
	}
}

// Bind associates an identity with a connection after its HELLO. A
// later connection for the same identity wins over an earlier one.
func (r *Registry) Bind(id domain.Identity, c Sender) {
	r.conns[c] = id
	r.byID[id] = c
}

// Remove drops a closed connection and clears its identity binding, if
// that binding still points at this connection.
func (r *Registry) Remove(c Sender) {
	id, ok := r.conns[c]
	if !ok {
		return
	}
	delete(r.conns, c)
	if id != "" && r.byID[id] == c {
		delete(r.byID, id)
	}
}

// Lookup returns the live connection for an identity. An identity with
// no live connection is offline for routing purposes, whatever its
// pending queue holds.
func (r *Registry) Lookup(id domain.Identity) (Sender, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns every live connection.
func (r *Registry) All() []Sender {
	out := make([]Sender, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Others returns every live connection except the given one.
func (r *Registry) Others(except Sender) []Sender {
	out := make([]Sender, 0, len(r.conns))
	for c := range r.conns {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}
