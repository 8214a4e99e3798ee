package calendar

import (
	"strconv"
	"strings"
	"time"
)

// wireLayout is the canonical outbound format: UTC, millisecond
// precision, fixed width.
const wireLayout = "2006-01-02T15:04:05.000Z07:00"

// acceptedLayouts are the inbound string formats, tried in order.
// Clients send anything from full RFC3339 down to a bare date.
var acceptedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp is a point in time as it travels over the wire and into
// the store. Unparseable input coerces to the zero-time sentinel
// instead of failing: incoming payloads are not validated, and a bad
// date is written through as-is.
type Timestamp struct {
	time.Time
}

// At wraps a time.Time.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// FromMillis reconstructs a Timestamp from Unix milliseconds, the
// store's column representation. The sentinel round-trips: the zero
// time's milliseconds map back to a Timestamp whose IsZero is true.
func FromMillis(ms int64) Timestamp {
	return Timestamp{Time: time.UnixMilli(ms).UTC()}
}

// Millis returns the Unix-millisecond representation used by the store.
func (t Timestamp) Millis() int64 {
	return t.Time.UnixMilli()
}

// Parse coerces a wire string into a Timestamp. Anything that matches
// no accepted layout yields the sentinel and no error.
func Parse(s string) Timestamp {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: parsed.UTC()}
		}
	}
	return Timestamp{}
}

// String implements fmt.Stringer using the canonical wire format.
func (t Timestamp) String() string {
	return t.Time.UTC().Format(wireLayout)
}

// MarshalJSON emits the canonical wire format. The sentinel marshals
// as year-one midnight rather than being suppressed.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

// UnmarshalJSON accepts a timestamp string in any accepted layout, a
// JSON number of Unix milliseconds, or null. It never reports an
// error for malformed content; the value degrades to the sentinel.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null" || raw == `""`:
		t.Time = time.Time{}
	case strings.HasPrefix(raw, `"`):
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
		t.Time = Parse(unquoted).Time
	default:
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
		t.Time = time.UnixMilli(ms).UTC()
	}
	return nil
}
