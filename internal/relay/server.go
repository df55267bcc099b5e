package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/domain"
	"github.com/sempicanha/commilink/internal/wire"
)

type eventKind int

const (
	evOpen eventKind = iota
	evFrame
	evClose
)

type event struct {
	kind eventKind
	src  *conn
	raw  []byte
}

// conn wraps a websocket connection as a Sender. Only the routing
// goroutine ever writes to it, so no write lock is needed.
type conn struct {
	ws *websocket.Conn
}

func (c *conn) Send(m *domain.Message) error {
	raw, err := wire.Encode(m)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, raw)
}

func (c *conn) SendRaw(raw []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, raw)
}

// Server accepts websocket connections and feeds every inbound frame
// through a single routing goroutine, so no two router invocations run
// concurrently.
type Server struct {
	cfg    Config
	log    *zap.Logger
	store  *Store
	reg    *Registry
	router *Router

	upgrader websocket.Upgrader
	events   chan event
}

// NewServer assembles a relay from its config.
func NewServer(cfg Config, log *zap.Logger) *Server {
	store := NewStore(cfg.Snapshot, cfg.PendingCap, log)
	reg := NewRegistry()
	return &Server{
		cfg:    cfg,
		log:    log,
		store:  store,
		reg:    reg,
		router: NewRouter(store, reg, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The relay authenticates nothing; browser origin checks
			// add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		events: make(chan event, 128),
	}
}

// Run binds the listen address and serves until ctx is cancelled, then
// takes a final snapshot. Failure to bind is the only fatal error.
func (s *Server) Run(ctx context.Context) error {
	if err := s.store.Load(); err != nil {
		s.log.Warn("snapshot load failed, starting empty", zap.Error(err))
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("relay: bind %s: %w", s.cfg.Listen, err)
	}
	s.log.Info("relay listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("snapshot", s.cfg.Snapshot))

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		s.loop(ctx)
	}()

	srv := &http.Server{Handler: http.HandlerFunc(s.handleUpgrade)}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	serveErr := srv.Serve(ln)
	<-loopDone

	if err := s.store.Persist(); err != nil {
		s.log.Error("final snapshot failed", zap.Error(err))
	} else {
		s.log.Info("store persisted")
	}

	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}

// loop is the single event-processing goroutine. Each event is handled
// to completion before the next; a slow snapshot write blocks routing
// for its duration, which the synchronous persistence model accepts.
func (s *Server) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			switch ev.kind {
			case evOpen:
				s.reg.Add(ev.src)
			case evFrame:
				s.router.Handle(ev.src, ev.raw)
			case evClose:
				s.reg.Remove(ev.src)
			}
		}
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	s.log.Info("client connected", zap.String("remote", ws.RemoteAddr().String()))
	c := &conn{ws: ws}
	go s.read(c)
}

// read pumps frames from one connection into the event channel until
// the connection dies.
func (s *Server) read(c *conn) {
	defer c.ws.Close()
	s.events <- event{kind: evOpen, src: c}
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			s.log.Info("client disconnected", zap.String("remote", c.ws.RemoteAddr().String()))
			s.events <- event{kind: evClose, src: c}
			return
		}
		s.events <- event{kind: evFrame, src: c, raw: raw}
	}
}
