package client

import (
	"context"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/domain"
	"github.com/sempicanha/commilink/internal/wire"
)

// EnvRelay names the environment variable overriding the relay address.
const EnvRelay = "COMMILINK_RELAY"

// DefaultRelay is used when neither flag nor environment names a relay.
const DefaultRelay = "ws://localhost:8080"

// RelayURL resolves the relay address from an explicit value, the
// environment, or the default, in that order.
func RelayURL(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(EnvRelay); v != "" {
		return v
	}
	return DefaultRelay
}

// Conn is a client's websocket connection to the relay. The engine's
// ack replies and the command line both write through it, so writes are
// serialised with a mutex.
type Conn struct {
	ws  *websocket.Conn
	mu  sync.Mutex
	log *zap.Logger
}

// Dial connects to a relay.
func Dial(ctx context.Context, url string, log *zap.Logger) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws, log: log}, nil
}

// Send encodes and writes one message.
func (c *Conn) Send(m *domain.Message) error {
	raw, err := wire.Encode(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, raw)
}

// ReadLoop decodes inbound frames and hands them to the engine until
// the connection dies. Undecodable frames are dropped, the connection
// stays open.
func (c *Conn) ReadLoop(e *Engine) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		m, err := wire.Decode(raw)
		if err != nil {
			c.log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		e.Handle(m)
	}
}

// Close tears the connection down.
func (c *Conn) Close() error {
	return c.ws.Close()
}
