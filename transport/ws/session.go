// Package ws carries hub messages over WebSocket connections. Each
// accepted connection becomes one hub session: a read loop feeds
// client envelopes into the hub, and the hub pushes broadcasts back
// through Send. Reconnection is entirely the client's concern.
package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/minyu3108/scheduling/logging"
	"github.com/minyu3108/scheduling/server"
)

// Session is one live WebSocket connection registered with the hub.
type Session struct {
	id     string
	conn   net.Conn
	hub    *server.Hub
	logger *logging.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(conn net.Conn, hub *server.Hub, logger *logging.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		hub:    hub,
		logger: logger.WithSession(id),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Send marshals a server envelope and writes it as one text frame.
// The hub may broadcast from any goroutine, so writes are serialized
// here.
func (s *Session) Send(msg server.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wsutil.WriteServerText(s.conn, data)
}

// run registers with the hub, then reads client frames until the
// connection ends. Every decodable envelope is handed to the hub;
// undecodable ones are logged and dropped, never answered.
func (s *Session) run(ctx context.Context) {
	defer s.close()

	s.hub.Register(ctx, s)

	for {
		data, err := wsutil.ReadClientText(s.conn)
		if err != nil {
			if err != io.EOF {
				s.logger.DebugContext(ctx, "connection closed", slog.String("reason", err.Error()))
			}
			return
		}

		var msg server.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.WarnContext(ctx, "dropping unparseable frame", slog.String("error", err.Error()))
			continue
		}

		s.hub.Dispatch(ctx, s, msg)
	}
}

// close removes the session from the hub and tears down the
// connection. Safe to call from either the read loop or the handler.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.hub.Unregister(s)
		s.conn.Close()
	})
}
