// Package calendar holds the shared availability-event model used by
// the store, the synchronization server and the wire transport.
package calendar

// Event is a titled time interval representing someone's declared
// availability.
//
// ID is assigned by the store at creation time; IDs supplied by a
// client on add are discarded. There is no versioning, soft delete or
// audit trail, and nothing enforces Start <= End.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       Timestamp `json:"start"`
	End         Timestamp `json:"end"`
	IsTentative bool      `json:"isTentative"`
	Notes       string    `json:"notes"`
}
