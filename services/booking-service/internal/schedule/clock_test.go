package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestDateKey(t *testing.T) {
	d := time.Date(2026, 3, 4, 23, 59, 0, 0, time.Local)
	if got := DateKey(d); got != "2026-03-04" {
		t.Fatalf("DateKey = %q, want 2026-03-04", got)
	}
	// Single-digit month and day must be zero-padded.
	d = time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local)
	if got := DateKey(d); got != "2026-01-05" {
		t.Fatalf("DateKey = %q, want 2026-01-05", got)
	}
}

func TestDateKeyRoundTrip(t *testing.T) {
	parsed, err := ParseDateKey("2026-03-04")
	if err != nil {
		t.Fatalf("ParseDateKey failed: %v", err)
	}
	if got := DateKey(parsed); got != "2026-03-04" {
		t.Fatalf("round trip = %q", got)
	}
	if _, err := ParseDateKey("03/04/2026"); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestClockLabel(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{0, "00:00"},
		{600, "10:00"},
		{610, "10:10"},
		{1439, "23:59"},
	}
	for _, tc := range cases {
		got, err := ClockLabel(tc.minutes)
		if err != nil {
			t.Fatalf("ClockLabel(%d) failed: %v", tc.minutes, err)
		}
		if got != tc.want {
			t.Fatalf("ClockLabel(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}

	for _, bad := range []int{-1, 1440, 10000} {
		if _, err := ClockLabel(bad); !errors.Is(err, ErrClockRange) {
			t.Fatalf("ClockLabel(%d): expected ErrClockRange, got %v", bad, err)
		}
	}
}

func TestParseClock(t *testing.T) {
	for _, minutes := range []int{0, 599, 600, 1080, 1439} {
		label, err := ClockLabel(minutes)
		if err != nil {
			t.Fatalf("ClockLabel(%d) failed: %v", minutes, err)
		}
		back, err := ParseClock(label)
		if err != nil {
			t.Fatalf("ParseClock(%q) failed: %v", label, err)
		}
		if back != minutes {
			t.Fatalf("ParseClock(%q) = %d, want %d", label, back, minutes)
		}
	}

	for _, bad := range []string{"", "10", "25:00", "10:65", "1:00", "aa:bb"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q): expected error", bad)
		}
	}
}

func TestLabel12(t *testing.T) {
	cases := []struct {
		clock string
		want  string
	}{
		{"00:05", "12:05 AM"}, // hour 0 renders as 12 AM
		{"10:00", "10:00 AM"},
		{"12:00", "12:00 PM"}, // noon renders as 12 PM
		{"13:05", "1:05 PM"},
		{"18:40", "6:40 PM"},
		{"23:59", "11:59 PM"},
	}
	for _, tc := range cases {
		got, err := Label12(tc.clock)
		if err != nil {
			t.Fatalf("Label12(%q) failed: %v", tc.clock, err)
		}
		if got != tc.want {
			t.Fatalf("Label12(%q) = %q, want %q", tc.clock, got, tc.want)
		}
	}

	if _, err := Label12("24:00"); err == nil {
		t.Fatal("expected error for out-of-range label")
	}
}
