package calendar

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseAcceptedLayouts(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", "2024-01-01T10:00:00Z", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"rfc3339_nano", "2024-01-01T10:00:00.250Z", time.Date(2024, 1, 1, 10, 0, 0, 250_000_000, time.UTC)},
		{"rfc3339_offset", "2024-01-01T12:00:00+02:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"no_zone", "2024-01-01T10:00:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"no_seconds", "2024-01-01T10:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"date_only", "2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"padded", "  2024-01-01T10:00  ", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.in)
			if !got.Time.Equal(tc.want) {
				t.Errorf("Parse(%q) = %v, want %v", tc.in, got.Time, tc.want)
			}
		})
	}
}

func TestParseMalformedCoercesToSentinel(t *testing.T) {
	for _, in := range []string{"", "not a date", "tomorrow", "2024-13-45T99:99"} {
		if got := Parse(in); !got.IsZero() {
			t.Errorf("Parse(%q) = %v, want zero sentinel", in, got.Time)
		}
	}
}

func TestUnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"string", `"2024-01-01T10:00:00Z"`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"epoch_millis", `1704103200000`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"null", `null`, time.Time{}},
		{"empty_string", `""`, time.Time{}},
		{"garbage_string", `"whenever"`, time.Time{}},
		{"garbage_number", `1.5e999`, time.Time{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tc.in), &ts); err != nil {
				t.Fatalf("Unmarshal(%s) returned error: %v", tc.in, err)
			}
			if !ts.Time.Equal(tc.want) {
				t.Errorf("Unmarshal(%s) = %v, want %v", tc.in, ts.Time, tc.want)
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	ts := At(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2024-01-01T10:00:00.000Z"` {
		t.Errorf("marshal = %s", b)
	}

	var back Timestamp
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Time.Equal(ts.Time) {
		t.Errorf("round trip: got %v, want %v", back.Time, ts.Time)
	}
}

func TestMillisRoundTrip(t *testing.T) {
	ts := At(time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC))
	if got := FromMillis(ts.Millis()); !got.Time.Equal(ts.Time) {
		t.Errorf("round trip: got %v, want %v", got.Time, ts.Time)
	}

	// The sentinel has to survive a trip through the store column too.
	var zero Timestamp
	if got := FromMillis(zero.Millis()); !got.IsZero() {
		t.Errorf("sentinel round trip: got %v, want zero", got.Time)
	}
}

func TestEventJSONDefaults(t *testing.T) {
	var ev Event
	if err := json.Unmarshal([]byte(`{"title":"Alice","start":"2024-01-01T10:00","end":"2024-01-01T11:00"}`), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.IsTentative {
		t.Error("IsTentative should default to false")
	}
	if ev.Notes != "" {
		t.Errorf("Notes should default to empty, got %q", ev.Notes)
	}
	if ev.Start.IsZero() || ev.End.IsZero() {
		t.Error("start/end should have parsed")
	}
}
