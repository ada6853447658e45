// ABOUTME: Tests for UTC time helpers and time-derived IDs
// ABOUTME: Verifies ISO parsing fallbacks and ID uniqueness
package util

import (
	"strings"
	"testing"
	"time"
)

func TestParseISO(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"ledger format", "2026-08-30T14:30:00Z", time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)},
		{"rfc3339 offset", "2026-08-30T14:30:00+02:00", time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)},
		{"date only", "2026-08-30", time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)},
		{"empty", "", time.Time{}},
		{"garbage", "not-a-time", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseISO(tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("ParseISO(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsoNowRoundTrip(t *testing.T) {
	ts := IsoNow()
	parsed := ParseISO(ts)
	if parsed.IsZero() {
		t.Fatalf("ParseISO(IsoNow()) returned zero time for %q", ts)
	}
	if time.Since(parsed) > time.Minute {
		t.Errorf("IsoNow() = %q, more than a minute off", ts)
	}
	if !strings.HasSuffix(ts, "Z") {
		t.Errorf("IsoNow() = %q, want trailing Z", ts)
	}
}

func TestTodayStr(t *testing.T) {
	got := TodayStr()
	if _, err := time.Parse(DateFormat, got); err != nil {
		t.Errorf("TodayStr() = %q, not a valid date: %v", got, err)
	}
}

func TestTimeID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := TimeID()
		if seen[id] {
			t.Fatalf("TimeID() produced duplicate %q after %d draws", id, i)
		}
		seen[id] = true
	}
}

func TestTimeID_Shape(t *testing.T) {
	id := TimeID()
	parts := strings.Split(id, "-")
	if len(parts) != 2 {
		t.Fatalf("TimeID() = %q, want two dash-separated parts", id)
	}
	if len(parts[0]) != 9 {
		t.Errorf("TimeID() time part = %q, want 9 digits", parts[0])
	}
	if len(parts[1]) != 4 {
		t.Errorf("TimeID() suffix = %q, want 4 chars", parts[1])
	}
}
