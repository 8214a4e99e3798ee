package ws

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gws "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minyu3108/scheduling/calendar"
	"github.com/minyu3108/scheduling/server"
	"github.com/minyu3108/scheduling/storage/sqlite"
)

// setupServer wires a real sqlite store, hub and ws handler behind an
// httptest server, mirroring production wiring.
func setupServer(t *testing.T) (*server.Hub, string) {
	t.Helper()

	store, err := sqlite.NewWithDataSource("file:" + filepath.Join(t.TempDir(), "ws_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := server.New(store, nil)
	t.Cleanup(func() { hub.Close() })

	mux := http.NewServeMux()
	mux.Handle("/ws", NewHandler(context.Background(), hub, nil))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return hub, strings.Replace(srv.URL, "http", "ws", 1) + "/ws"
}

// bufferedConn reads through the buffered reader gws.Dial returns, so
// frames that arrived together with the handshake are not lost.
type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func dial(t *testing.T, url string) net.Conn {
	t.Helper()
	conn, br, _, err := gws.Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	if br != nil {
		return &bufferedConn{Conn: conn, r: br}
	}
	return conn
}

func readMessage(t *testing.T, conn net.Conn) server.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	data, err := wsutil.ReadServerText(conn)
	require.NoError(t, err)

	var msg server.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func readEventList(t *testing.T, conn net.Conn, wantType string) []calendar.Event {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, wantType, msg.Type)

	var events []calendar.Event
	require.NoError(t, json.Unmarshal(msg.Payload, &events))
	return events
}

func send(t *testing.T, conn net.Conn, msgType string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env, err := json.Marshal(server.Message{Type: msgType, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, wsutil.WriteClientText(conn, env))
}

func TestConnectReceivesInitialSnapshot(t *testing.T) {
	_, url := setupServer(t)

	conn := dial(t, url)
	events := readEventList(t, conn, server.MsgInitialEvents)
	assert.Empty(t, events, "fresh store should snapshot as an empty array")
}

func TestMutationsBroadcastToAllConnections(t *testing.T) {
	_, url := setupServer(t)

	c1 := dial(t, url)
	readEventList(t, c1, server.MsgInitialEvents)
	c2 := dial(t, url)
	readEventList(t, c2, server.MsgInitialEvents)

	send(t, c1, server.MsgAddEvent, map[string]string{
		"title": "Alice",
		"start": "2024-01-01T10:00",
		"end":   "2024-01-01T11:00",
	})

	var id string
	for _, conn := range []net.Conn{c1, c2} {
		events := readEventList(t, conn, server.MsgEventsUpdated)
		require.Len(t, events, 1)
		assert.Equal(t, "Alice", events[0].Title)
		assert.NotEmpty(t, events[0].ID)
		id = events[0].ID
	}

	// Delete from the other connection; both observe the empty list.
	send(t, c2, server.MsgDeleteEvent, id)
	for _, conn := range []net.Conn{c1, c2} {
		events := readEventList(t, conn, server.MsgEventsUpdated)
		assert.Empty(t, events)
	}
}

func TestGarbageFrameDoesNotKillSession(t *testing.T) {
	_, url := setupServer(t)

	conn := dial(t, url)
	readEventList(t, conn, server.MsgInitialEvents)

	require.NoError(t, wsutil.WriteClientText(conn, []byte("this is not json")))

	// The session survives and keeps processing.
	send(t, conn, server.MsgAddEvent, map[string]string{
		"title": "still here",
		"start": "2024-01-01T10:00",
		"end":   "2024-01-01T11:00",
	})
	events := readEventList(t, conn, server.MsgEventsUpdated)
	require.Len(t, events, 1)
	assert.Equal(t, "still here", events[0].Title)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, url := setupServer(t)

	conn := dial(t, url)
	readEventList(t, conn, server.MsgInitialEvents)
	require.Equal(t, 1, hub.SessionCount())

	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for hub.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session never unregistered, count=%d", hub.SessionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
