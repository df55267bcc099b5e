package relay

import (
	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/domain"
	"github.com/sempicanha/commilink/internal/wire"
)

// Router applies the protocol's routing rules to each inbound frame,
// consulting the registry for liveness and mutating the store for
// anything durable. It holds no state of its own.
//
// All delivery is best-effort: a failed send is logged and forgotten,
// never retried.
type Router struct {
	store *Store
	reg   *Registry
	log   *zap.Logger
}

// NewRouter wires a router to its store and registry.
func NewRouter(store *Store, reg *Registry, log *zap.Logger) *Router {
	return &Router{store: store, reg: reg, log: log}
}

// Handle routes one inbound frame from src. Malformed frames are
// dropped; the connection stays open.
func (rt *Router) Handle(src Sender, raw []byte) {
	m, err := wire.Decode(raw)
	if err != nil {
		rt.log.Warn("dropping undecodable frame", zap.Error(err))
		return
	}
	rt.log.Debug("routing",
		zap.String("type", m.Type),
		zap.String("from", m.From.String()),
		zap.String("to", m.To.String()),
		zap.String("room", m.Room.String()))

	switch m.Type {
	case domain.TypeHello:
		rt.hello(src, m, raw)
	case domain.TypeAccept:
		rt.accept(src, m, raw)
	case domain.TypeEnc:
		rt.enc(src, m)
	case domain.TypeSubscribe:
		rt.subscribe(m)
	case domain.TypeAck:
		rt.ack(m, raw)
	case domain.TypeTombstone:
		rt.tombstone(m, raw)
	default:
		// Unknown tag: forward verbatim so newer clients can talk
		// through an older relay.
		rt.fanoutRaw(rt.reg.Others(src), raw)
	}
}

// hello registers the sender, flushes whatever queued up while it was
// offline, and announces it to everyone else.
func (rt *Router) hello(src Sender, m *domain.Message, raw []byte) {
	rt.reg.Bind(m.From, src)
	pending := rt.store.TakePending(m.From)
	if len(pending) > 0 {
		rt.log.Info("flushing pending queue",
			zap.String("identity", m.From.String()),
			zap.Int("count", len(pending)))
		for i := range pending {
			rt.send(src, &pending[i])
		}
	}
	rt.fanoutRaw(rt.reg.Others(src), raw)
}

func (rt *Router) accept(src Sender, m *domain.Message, raw []byte) {
	if m.To == "" {
		rt.fanoutRaw(rt.reg.Others(src), raw)
		return
	}
	if c, ok := rt.reg.Lookup(m.To); ok {
		rt.send(c, m)
		return
	}
	rt.store.Enqueue(m.To, *m)
}

func (rt *Router) enc(src Sender, m *domain.Message) {
	switch {
	case m.Direct():
		if c, ok := rt.reg.Lookup(m.To); ok {
			rt.send(c, m)
			return
		}
		rt.store.Enqueue(m.To, *m)
	case m.Room != "":
		// The relay tracks no room memberships; it stores, then fans
		// out to everyone and lets receivers discard rooms they did
		// not join.
		rt.store.AppendRoom(m.Room, *m)
		for _, c := range rt.reg.All() {
			rt.send(c, m)
		}
	default:
		// Back-compat fallback for plain broadcasts.
		for _, c := range rt.reg.Others(src) {
			rt.send(c, m)
		}
	}
}

// subscribe replays a room's full backlog, oldest first, to the
// requesting identity. It must have said HELLO; an unregistered
// requester gets nothing.
func (rt *Router) subscribe(m *domain.Message) {
	c, ok := rt.reg.Lookup(m.From)
	if !ok {
		return
	}
	backlog := rt.store.Backlog(m.Room)
	rt.log.Info("sending room backlog",
		zap.String("room", m.Room.String()),
		zap.String("to", m.From.String()),
		zap.Int("count", len(backlog)))
	for i := range backlog {
		rt.send(c, &backlog[i])
	}
}

func (rt *Router) ack(m *domain.Message, raw []byte) {
	rt.store.Ack(m.AckFor, m.MID, m.Room)
	// Notification only; correctness does not depend on anyone
	// seeing it.
	rt.fanoutRaw(rt.reg.All(), raw)
}

func (rt *Router) tombstone(m *domain.Message, raw []byte) {
	rt.store.Tombstone(m.TargetMID)
	rt.log.Info("tombstone applied", zap.String("mid", m.TargetMID.String()))
	rt.fanoutRaw(rt.reg.All(), raw)
}

func (rt *Router) send(c Sender, m *domain.Message) {
	if err := c.Send(m); err != nil {
		rt.log.Debug("send failed", zap.Error(err))
	}
}

func (rt *Router) fanoutRaw(conns []Sender, raw []byte) {
	for _, c := range conns {
		if err := c.SendRaw(raw); err != nil {
			rt.log.Debug("broadcast send failed", zap.Error(err))
		}
	}
}
