package client

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/crypto"
	"github.com/sempicanha/commilink/internal/domain"
)

// SendFunc delivers an outbound message to the relay.
type SendFunc func(m *domain.Message) error

// ErrNoSessionKey indicates no completed handshake with the peer.
var ErrNoSessionKey = errors.New("client: no session key for peer; wait for HELLO/ACCEPT")

// ErrNoRoomKey indicates the room was joined without a group key, or
// not joined at all.
var ErrNoRoomKey = errors.New("client: no group key for room")

type session struct {
	key  [crypto.KeyBytes]byte
	name string
}

type roomState struct {
	key    [crypto.KeyBytes]byte
	hasKey bool
}

// Engine holds one identity's client state: its key pair, the session
// keys agreed with peers, and the rooms it has joined. Incoming
// messages from the relay go through Handle; outbound traffic leaves
// via the SendFunc it was started with.
//
// Session keys live only in memory and are invalidated by process
// restart; there is no rotation.
type Engine struct {
	name string
	priv [crypto.KeyBytes]byte
	pub  [crypto.KeyBytes]byte
	id   domain.Identity

	mu       sync.Mutex
	sessions map[domain.Identity]session
	rooms    map[domain.Room]roomState

	send SendFunc
	out  io.Writer
	log  *zap.Logger
}

// New creates an engine with a fresh key pair. Decrypted messages and
// protocol events are written to out.
func New(name string, out io.Writer, log *zap.Logger) (*Engine, error) {
	priv, pub, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	return &Engine{
		name:     name,
		priv:     priv,
		pub:      pub,
		id:       crypto.IdentityFromKey(pub),
		sessions: make(map[domain.Identity]session),
		rooms:    make(map[domain.Room]roomState),
		out:      out,
		log:      log,
	}, nil
}

// Identity returns the engine's self-certifying identity string.
func (e *Engine) Identity() domain.Identity { return e.id }

// Fingerprint returns a short fingerprint of the public key.
func (e *Engine) Fingerprint() string { return crypto.Fingerprint(e.pub[:]) }

// Start attaches the outbound path and announces the identity with a
// HELLO so the relay can flush anything queued while we were offline.
func (e *Engine) Start(send SendFunc) error {
	e.mu.Lock()
	e.send = send
	e.mu.Unlock()
	return send(&domain.Message{
		Type: domain.TypeHello,
		From: e.id,
		Pub:  e.pub[:],
		Name: e.name,
		TS:   time.Now().UnixMilli(),
	})
}

// Handle processes one message from the relay. Echoes of our own
// broadcasts are ignored. All failures are local: a message that cannot
// be decrypted or keyed is dropped with a warning, never answered.
func (e *Engine) Handle(m *domain.Message) {
	if m.From == e.id {
		return
	}
	switch m.Type {
	case domain.TypeHello:
		e.onHello(m)
	case domain.TypeAccept:
		e.onAccept(m)
	case domain.TypeEnc:
		e.onEnc(m)
	case domain.TypeAck:
		fmt.Fprintf(e.out, "* ack for mid=%s from %s\n", m.MID, m.From)
	case domain.TypeTombstone:
		fmt.Fprintf(e.out, "* tombstone for mid=%s by %s\n", m.TargetMID, m.From)
	case domain.TypeSubscribe:
		// Relay-side only.
	default:
		e.log.Debug("ignoring unknown message type", zap.String("type", m.Type))
	}
}

// onHello derives and caches a session key for the announcing peer,
// then replies with an ACCEPT so the peer can derive the same key.
func (e *Engine) onHello(m *domain.Message) {
	fmt.Fprintf(e.out, "* hello from %s (%s)\n", m.From, m.Name)
	if !e.derive(m) {
		return
	}
	err := e.sendMsg(&domain.Message{
		Type: domain.TypeAccept,
		From: e.id,
		To:   m.From,
		Pub:  e.pub[:],
		Name: e.name,
		TS:   time.Now().UnixMilli(),
	})
	if err != nil {
		e.log.Warn("accept send failed", zap.Error(err))
	}
}

func (e *Engine) onAccept(m *domain.Message) {
	if m.To != e.id {
		return
	}
	fmt.Fprintf(e.out, "* accept from %s (%s)\n", m.From, m.Name)
	e.derive(m)
}

// derive computes the session key for a HELLO/ACCEPT sender. A failure
// leaves the handshake silently incomplete: logged here, invisible to
// the peer, no retry.
func (e *Engine) derive(m *domain.Message) bool {
	peerPub, err := crypto.PublicKey(m.Pub)
	if err == nil {
		var key [crypto.KeyBytes]byte
		key, err = crypto.SessionKey(e.priv, peerPub)
		if err == nil {
			e.mu.Lock()
			e.sessions[m.From] = session{key: key, name: m.Name}
			e.mu.Unlock()
			return true
		}
	}
	e.log.Warn("session key derivation failed",
		zap.String("peer", m.From.String()), zap.Error(err))
	return false
}

func (e *Engine) onEnc(m *domain.Message) {
	if m.Direct() && m.To != e.id && m.Room == "" {
		return
	}
	if m.Room != "" {
		e.onRoomEnc(m)
		return
	}

	e.mu.Lock()
	sess, ok := e.sessions[m.From]
	e.mu.Unlock()
	if !ok {
		e.log.Warn("direct message without session key, dropping",
			zap.String("peer", m.From.String()), zap.String("mid", m.MID.String()))
		return
	}
	pt, err := crypto.Open(sess.key, m.Nonce, m.Data)
	if err != nil {
		e.log.Warn("direct decrypt failed, dropping",
			zap.String("peer", m.From.String()), zap.String("mid", m.MID.String()),
			zap.Error(err))
		return
	}
	fmt.Fprintf(e.out, "(direct) %s: %s (mid=%s)\n", m.From, pt, m.MID)
	e.ackOf(m, "")
}

func (e *Engine) onRoomEnc(m *domain.Message) {
	e.mu.Lock()
	st, joined := e.rooms[m.Room]
	e.mu.Unlock()
	if !joined || !st.hasKey {
		// Not our room, or no group key provisioned: discard quietly.
		e.log.Debug("room message without local key",
			zap.String("room", m.Room.String()), zap.String("mid", m.MID.String()))
		return
	}
	pt, err := crypto.Open(st.key, m.Nonce, m.Data)
	if err != nil {
		e.log.Warn("room decrypt failed, dropping",
			zap.String("room", m.Room.String()), zap.String("mid", m.MID.String()),
			zap.Error(err))
		return
	}
	fmt.Fprintf(e.out, "[%s] %s: %s (mid=%s)\n", m.Room, m.From, pt, m.MID)
	e.ackOf(m, m.Room)
}

// ackOf acknowledges a successfully decrypted message so the relay can
// drop its stored copy.
func (e *Engine) ackOf(m *domain.Message, room domain.Room) {
	ackFor := m.From
	if m.To != "" && m.To != e.id {
		ackFor = m.To
	}
	err := e.sendMsg(&domain.Message{
		Type:   domain.TypeAck,
		From:   e.id,
		MID:    m.MID,
		AckFor: ackFor,
		Room:   room,
		TS:     time.Now().UnixMilli(),
	})
	if err != nil {
		e.log.Warn("ack send failed", zap.Error(err))
	}
}

// SendDirect encrypts text under the session key agreed with peer and
// sends it addressed to them.
func (e *Engine) SendDirect(peer domain.Identity, text string) (domain.MessageID, error) {
	e.mu.Lock()
	sess, ok := e.sessions[peer]
	e.mu.Unlock()
	if !ok {
		return "", ErrNoSessionKey
	}
	nonce, ct, err := crypto.Seal(sess.key, []byte(text))
	if err != nil {
		return "", err
	}
	mid := domain.NewMID()
	return mid, e.sendMsg(&domain.Message{
		Type:  domain.TypeEnc,
		From:  e.id,
		To:    peer,
		MID:   mid,
		Nonce: nonce,
		Data:  ct,
		TS:    time.Now().UnixMilli(),
	})
}

// Publish encrypts text under the room's group key and publishes it.
func (e *Engine) Publish(room domain.Room, text string) (domain.MessageID, error) {
	e.mu.Lock()
	st, ok := e.rooms[room]
	e.mu.Unlock()
	if !ok || !st.hasKey {
		return "", ErrNoRoomKey
	}
	nonce, ct, err := crypto.Seal(st.key, []byte(text))
	if err != nil {
		return "", err
	}
	mid := domain.NewMID()
	return mid, e.sendMsg(&domain.Message{
		Type:  domain.TypeEnc,
		From:  e.id,
		Room:  room,
		MID:   mid,
		Nonce: nonce,
		Data:  ct,
		TS:    time.Now().UnixMilli(),
	})
}

// Join records room membership, optionally with its operator-provided
// base64 group key, and requests the backlog from the relay.
func (e *Engine) Join(room domain.Room, keyB64 string) error {
	st := roomState{}
	if keyB64 != "" {
		key, err := crypto.RoomKey(keyB64)
		if err != nil {
			return err
		}
		st = roomState{key: key, hasKey: true}
	}
	e.mu.Lock()
	e.rooms[room] = st
	e.mu.Unlock()
	return e.sendMsg(&domain.Message{
		Type: domain.TypeSubscribe,
		From: e.id,
		Room: room,
		TS:   time.Now().UnixMilli(),
	})
}

// Revoke publishes a tombstone for a message id, removing it from every
// relay store.
func (e *Engine) Revoke(mid domain.MessageID) error {
	return e.sendMsg(&domain.Message{
		Type:      domain.TypeTombstone,
		From:      e.id,
		TargetMID: mid,
		TS:        time.Now().UnixMilli(),
	})
}

// Peers lists the identities a session key has been agreed with.
func (e *Engine) Peers() []domain.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Identity, 0, len(e.sessions))
	for id := range e.sessions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Rooms lists the joined rooms.
func (e *Engine) Rooms() []domain.Room {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Room, 0, len(e.rooms))
	for r := range e.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e *Engine) sendMsg(m *domain.Message) error {
	e.mu.Lock()
	send := e.send
	e.mu.Unlock()
	if send == nil {
		return errors.New("client: engine not started")
	}
	return send(m)
}
