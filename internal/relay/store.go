package relay

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/domain"
)

// Store owns the relay's durable state: per-identity pending queues and
// per-room backlogs. Every mutating operation snapshots the whole state
// to disk; the in-memory maps stay authoritative when a write fails.
//
// The router is the only writer, on the single event-processing
// goroutine. The mutex guards against the final shutdown snapshot.
type Store struct {
	mu   sync.Mutex
	path string
	cap  int
	log  *zap.Logger

	pending map[domain.Identity][]domain.Message
	rooms   map[domain.Room][]domain.Message
}

type snapshot struct {
	Pending map[domain.Identity][]domain.Message `json:"pending"`
	Rooms   map[domain.Room][]domain.Message     `json:"rooms"`
}

// NewStore creates a store snapshotting to path. An empty path disables
// persistence. pendingCap bounds each pending queue; 0 means unbounded.
func NewStore(path string, pendingCap int, log *zap.Logger) *Store {
	return &Store{
		path:    path,
		cap:     pendingCap,
		log:     log,
		pending: make(map[domain.Identity][]domain.Message),
		rooms:   make(map[domain.Room][]domain.Message),
	}
}

// Load reads the most recent snapshot. A missing file starts from empty
// state and is not an error.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Pending != nil {
		s.pending = snap.Pending
	}
	if snap.Rooms != nil {
		s.rooms = snap.Rooms
	}
	return nil
}

// Persist writes the full state to disk via a temp file then rename, so
// a crash mid-write never leaves a corrupt snapshot behind.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(snapshot{Pending: s.pending, Rooms: s.rooms}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// save persists after a mutation. Write failures are logged, never
// fatal: memory stays authoritative until the next successful write.
func (s *Store) save() {
	if err := s.persistLocked(); err != nil {
		s.log.Error("store snapshot failed", zap.Error(err))
	}
}

// Enqueue appends a message to an offline identity's pending queue.
// With a cap configured, the oldest entry is dropped on overflow.
func (s *Store) Enqueue(id domain.Identity, m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := append(s.pending[id], m)
	if s.cap > 0 && len(q) > s.cap {
		dropped := q[0]
		q = q[1:]
		s.log.Warn("pending queue full, dropping oldest",
			zap.String("identity", id.String()),
			zap.String("mid", dropped.MID.String()))
	}
	s.pending[id] = q
	s.save()
}

// TakePending removes and returns an identity's queued messages in
// enqueue order. The cleared state is persisted when the queue was
// non-empty.
func (s *Store) TakePending(id domain.Identity) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.pending[id]
	if len(q) == 0 {
		return nil
	}
	delete(s.pending, id)
	s.save()
	return q
}

// AppendRoom appends a published message to a room's backlog.
func (s *Store) AppendRoom(room domain.Room, m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room] = append(s.rooms[room], m)
	s.save()
}

// Backlog returns a copy of a room's backlog in publish order. An
// unknown room yields an empty backlog, not an error.
func (s *Store) Backlog(room domain.Room) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.rooms[room]
	out := make([]domain.Message, len(q))
	copy(out, q)
	return out
}

// Ack removes the message with the given mid from ackFor's pending
// queue and, when room is non-empty, from that room's backlog. Entries
// with other mids are untouched.
func (s *Store) Ack(ackFor domain.Identity, mid domain.MessageID, room domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	if q, ok := s.pending[ackFor]; ok {
		if kept := dropMID(q, mid); len(kept) != len(q) {
			s.pending[ackFor] = kept
			changed = true
		}
	}
	if room != "" {
		if q, ok := s.rooms[room]; ok {
			if kept := dropMID(q, mid); len(kept) != len(q) {
				s.rooms[room] = kept
				changed = true
			}
		}
	}
	if changed {
		s.save()
	}
}

// Tombstone removes every entry with the given mid from every pending
// queue and every room backlog. Unscoped, irreversible, idempotent.
func (s *Store) Tombstone(mid domain.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for id, q := range s.pending {
		if kept := dropMID(q, mid); len(kept) != len(q) {
			s.pending[id] = kept
			changed = true
		}
	}
	for room, q := range s.rooms {
		if kept := dropMID(q, mid); len(kept) != len(q) {
			s.rooms[room] = kept
			changed = true
		}
	}
	if changed {
		s.save()
	}
}

func dropMID(q []domain.Message, mid domain.MessageID) []domain.Message {
	kept := q[:0:0]
	for _, m := range q {
		if m.MID != mid {
			kept = append(kept, m)
		}
	}
	return kept
}
