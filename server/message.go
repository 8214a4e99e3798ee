package server

import (
	"encoding/json"

	"github.com/minyu3108/scheduling/calendar"
)

// Server -> client message types.
const (
	// MsgInitialEvents carries the full ordered event list, sent once
	// to a session right after it connects.
	MsgInitialEvents = "initial_events"

	// MsgEventsUpdated carries the full ordered event list, sent to
	// every session after each successful mutation.
	MsgEventsUpdated = "events_updated"

	// MsgNewEvent is recognized by older clients but never emitted by
	// the server.
	//
	// Deprecated: legacy surface, kept for wire compatibility only.
	MsgNewEvent = "new_event"
)

// Client -> server message types.
const (
	MsgAddEvent        = "add_event"
	MsgUpdateEvent     = "update_event"
	MsgDeleteEvent     = "delete_event"
	MsgDeleteOldEvents = "manual_delete_old_events"
)

// Message is the wire envelope in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds an envelope, marshalling the payload. Marshalling
// an event list cannot fail in practice; an error here is a bug.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// EventPayload is the body of add_event and update_event requests.
// Nothing is validated: absent fields take their zero values, and
// malformed timestamps coerce to the sentinel inside the Timestamp
// codec.
type EventPayload struct {
	ID          string             `json:"id,omitempty"`
	Title       string             `json:"title"`
	Start       calendar.Timestamp `json:"start"`
	End         calendar.Timestamp `json:"end"`
	IsTentative bool               `json:"isTentative"`
	Notes       string             `json:"notes"`
}

// Event converts the payload into the domain event. The ID travels
// separately: on add the store assigns its own, on update it only
// selects the target row.
func (p EventPayload) Event() calendar.Event {
	return calendar.Event{
		Title:       p.Title,
		Start:       p.Start,
		End:         p.End,
		IsTentative: p.IsTentative,
		Notes:       p.Notes,
	}
}

// SweepPayload is the body of manual_delete_old_events requests.
type SweepPayload struct {
	BeforeDate calendar.Timestamp `json:"beforeDate"`
}
