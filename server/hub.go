// Package server implements the synchronization hub: it owns the set
// of connected sessions, applies mutation messages against the event
// store and re-broadcasts the full event list after every change.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/minyu3108/scheduling/calendar"
	syncErrors "github.com/minyu3108/scheduling/errors"
	"github.com/minyu3108/scheduling/logging"
)

// Store is the event store contract the hub drives. The sqlite
// implementation satisfies it; tests substitute their own.
type Store interface {
	ListAll(ctx context.Context) ([]calendar.Event, error)
	Add(ctx context.Context, ev calendar.Event) (calendar.Event, error)
	UpdateByID(ctx context.Context, id string, ev calendar.Event) error
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteEndingBefore(ctx context.Context, cutoff calendar.Timestamp) (int, error)
}

// Session is one connected client's live channel. Sessions register
// themselves on connect and remove themselves on disconnect; the hub
// does no further bookkeeping.
type Session interface {
	ID() string
	Send(msg Message) error
}

// Hub is the synchronization server.
type Hub struct {
	store  Store
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]Session
	closed   bool
}

// New creates a hub over the given store.
func New(store Store, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		store:    store,
		logger:   logger.WithComponent(logging.Component("hub")),
		sessions: make(map[string]Session),
	}
}

// Register adds a session to the active set and sends it the initial
// snapshot. If the snapshot fetch fails the session stays registered
// but receives nothing: a silent degraded state, corrected only by
// the next broadcast.
func (h *Hub) Register(ctx context.Context, sess Session) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.sessions[sess.ID()] = sess
	count := len(h.sessions)
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "session connected",
		slog.String("session_id", sess.ID()),
		slog.Int("active_sessions", count),
	)

	events, err := h.store.ListAll(ctx)
	if err != nil {
		h.logger.LogError(ctx, err, "initial snapshot fetch failed",
			slog.String("session_id", sess.ID()))
		return
	}

	msg, err := NewMessage(MsgInitialEvents, eventList(events))
	if err != nil {
		h.logger.LogError(ctx, err, "initial snapshot encode failed")
		return
	}
	if err := sess.Send(msg); err != nil {
		h.logger.LogError(ctx, syncErrors.NewNetworkError(syncErrors.OpSend, err),
			"initial snapshot send failed", slog.String("session_id", sess.ID()))
	}
}

// Unregister removes a session from the active set. No other effect.
func (h *Hub) Unregister(sess Session) {
	h.mu.Lock()
	delete(h.sessions, sess.ID())
	count := len(h.sessions)
	h.mu.Unlock()

	h.logger.Info("session disconnected",
		slog.String("session_id", sess.ID()),
		slog.Int("active_sessions", count),
	)
}

// Dispatch routes one client message to its handler. Unknown types
// and undecodable payloads are logged and dropped; no error ever
// reaches the client.
func (h *Hub) Dispatch(ctx context.Context, sess Session, msg Message) {
	switch msg.Type {
	case MsgAddEvent:
		var payload EventPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.logPayloadError(ctx, msg.Type, err)
			return
		}
		h.HandleAdd(ctx, sess, payload)

	case MsgUpdateEvent:
		var payload EventPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.logPayloadError(ctx, msg.Type, err)
			return
		}
		h.HandleUpdate(ctx, sess, payload)

	case MsgDeleteEvent:
		var id string
		if err := json.Unmarshal(msg.Payload, &id); err != nil {
			h.logPayloadError(ctx, msg.Type, err)
			return
		}
		h.HandleDelete(ctx, sess, id)

	case MsgDeleteOldEvents:
		var payload SweepPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.logPayloadError(ctx, msg.Type, err)
			return
		}
		h.SweepBefore(ctx, payload.BeforeDate)

	default:
		h.logger.WarnContext(ctx, "unknown message type",
			slog.String("type", msg.Type),
			slog.String("session_id", sess.ID()),
		)
	}
}

// HandleAdd inserts a new event and broadcasts the refreshed list.
// The payload is taken as sent: no field validation, client-supplied
// IDs discarded, IsTentative and Notes defaulting through zero values.
func (h *Hub) HandleAdd(ctx context.Context, sess Session, payload EventPayload) {
	stored, err := h.store.Add(ctx, payload.Event())
	if err != nil {
		h.logger.LogError(ctx, err, "add failed", slog.String("session_id", sess.ID()))
		return
	}

	h.logger.InfoContext(ctx, "event added",
		slog.String("event_id", stored.ID),
		slog.String("session_id", sess.ID()),
	)
	h.Broadcast(ctx)
}

// HandleUpdate rewrites an event in place, keyed by the payload id.
func (h *Hub) HandleUpdate(ctx context.Context, sess Session, payload EventPayload) {
	if err := h.store.UpdateByID(ctx, payload.ID, payload.Event()); err != nil {
		h.logger.LogError(ctx, err, "update failed",
			slog.String("event_id", payload.ID),
			slog.String("session_id", sess.ID()),
		)
		return
	}

	h.logger.InfoContext(ctx, "event updated",
		slog.String("event_id", payload.ID),
		slog.String("session_id", sess.ID()),
	)
	h.Broadcast(ctx)
}

// HandleDelete removes an event by id. Deleting an id that does not
// exist succeeds silently and, since nothing changed, does not
// broadcast.
func (h *Hub) HandleDelete(ctx context.Context, sess Session, id string) {
	deleted, err := h.store.DeleteByID(ctx, id)
	if err != nil {
		h.logger.LogError(ctx, err, "delete failed",
			slog.String("event_id", id),
			slog.String("session_id", sess.ID()),
		)
		return
	}
	if !deleted {
		h.logger.DebugContext(ctx, "delete of unknown id ignored", slog.String("event_id", id))
		return
	}

	h.logger.InfoContext(ctx, "event deleted",
		slog.String("event_id", id),
		slog.String("session_id", sess.ID()),
	)
	h.Broadcast(ctx)
}

// SweepBefore bulk-deletes every event ending strictly before the
// cutoff in one atomic batch. When nothing matches there is no
// broadcast. Both the manual_delete_old_events message and the
// scheduled retention sweep come through here.
func (h *Hub) SweepBefore(ctx context.Context, cutoff calendar.Timestamp) {
	n, err := h.store.DeleteEndingBefore(ctx, cutoff)
	if err != nil {
		h.logger.LogError(ctx, err, "sweep failed", slog.String("cutoff", cutoff.String()))
		return
	}
	if n == 0 {
		h.logger.DebugContext(ctx, "sweep matched nothing", slog.String("cutoff", cutoff.String()))
		return
	}

	h.logger.InfoContext(ctx, "old events swept",
		slog.Int("deleted", n),
		slog.String("cutoff", cutoff.String()),
	)
	h.Broadcast(ctx)
}

// Broadcast re-fetches the full list and pushes events_updated to
// every session. There is no diffing and no ordering guarantee
// between racing mutations: whichever broadcast reads the store last
// wins as the observed state.
func (h *Hub) Broadcast(ctx context.Context) {
	events, err := h.store.ListAll(ctx)
	if err != nil {
		h.logger.LogError(ctx, err, "broadcast fetch failed")
		return
	}

	msg, err := NewMessage(MsgEventsUpdated, eventList(events))
	if err != nil {
		h.logger.LogError(ctx, err, "broadcast encode failed")
		return
	}

	// Snapshot the session set so sends happen outside the lock.
	h.mu.RLock()
	sessions := make([]Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	for _, sess := range sessions {
		if err := sess.Send(msg); err != nil {
			h.logger.LogError(ctx, syncErrors.NewNetworkError(syncErrors.OpBroadcast, err),
				"broadcast send failed", slog.String("session_id", sess.ID()))
		}
	}
}

// SessionCount reports the number of active sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close marks the hub closed and drops all sessions. Transports own
// their connections and close them separately.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.sessions = make(map[string]Session)
	return nil
}

func (h *Hub) logPayloadError(ctx context.Context, msgType string, err error) {
	h.logger.LogError(ctx,
		syncErrors.NewProtocolError(syncErrors.OpDispatch, fmt.Errorf("decode %s payload: %w", msgType, err)),
		"dropping undecodable message")
}

// eventList guarantees a JSON array even when the store is empty;
// clients expect [] rather than null.
func eventList(events []calendar.Event) []calendar.Event {
	if events == nil {
		return []calendar.Event{}
	}
	return events
}
