package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/clinislot/clinislot/services/booking-service/internal/schedule"
)

func clinicConfig() schedule.Config {
	return schedule.Config{
		Sessions: []schedule.Session{
			{Name: "Morning", StartMinute: 600, EndMinute: 900},
			{Name: "Evening", StartMinute: 1080, EndMinute: 1320},
		},
		SlotMinutes:    20,
		WindowDays:     3,
		ClosedWeekdays: []time.Weekday{time.Saturday},
	}
}

func at(date time.Time, minutes int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).
		Add(time.Duration(minutes) * time.Minute)
}

func statusOf(t *testing.T, slots []Slot, minute int) Status {
	t.Helper()
	for _, s := range slots {
		if s.StartMinute == minute {
			return s.Status
		}
	}
	t.Fatalf("no slot with start %d", minute)
	return ""
}

// Bookings at 10:00 and at the off-grid 10:10 minute: 10:00 is blocked
// directly, 10:20 is blocked because the 10:10 interval straddles it, and
// 10:40 stays free.
func TestResolveBlocksOverlappedSlots(t *testing.T) {
	cfg := clinicConfig()
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.Local)
	now := at(date, 590) // 09:50, before the Morning session opens

	slots := Resolve(cfg, date, []int{600, 610}, now)

	if got := statusOf(t, slots, 600); got != StatusBooked {
		t.Fatalf("10:00 = %s, want booked", got)
	}
	if got := statusOf(t, slots, 620); got != StatusBooked {
		t.Fatalf("10:20 = %s, want booked", got)
	}
	if got := statusOf(t, slots, 640); got != StatusAvailable {
		t.Fatalf("10:40 = %s, want available", got)
	}
}

func TestResolvePastPrecedesBooked(t *testing.T) {
	cfg := clinicConfig()
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.Local)
	now := at(date, 630) // 10:30, mid-Morning

	slots := Resolve(cfg, date, []int{600}, now)

	// Every slot at or before now is past, booked or not.
	if got := statusOf(t, slots, 600); got != StatusPast {
		t.Fatalf("10:00 = %s, want past", got)
	}
	if got := statusOf(t, slots, 620); got != StatusPast {
		t.Fatalf("10:20 = %s, want past", got)
	}
	if got := statusOf(t, slots, 640); got != StatusAvailable {
		t.Fatalf("10:40 = %s, want available", got)
	}
	// Evening slots are untouched by a mid-Morning clock.
	if got := statusOf(t, slots, 1080); got != StatusAvailable {
		t.Fatalf("18:00 = %s, want available", got)
	}
}

// A slot starting exactly at now is not bookable: the boundary is inclusive
// on the past side.
func TestResolveBoundaryInstantIsPast(t *testing.T) {
	cfg := clinicConfig()
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.Local)
	now := at(date, 640)

	slots := Resolve(cfg, date, nil, now)
	if got := statusOf(t, slots, 640); got != StatusPast {
		t.Fatalf("slot starting at now = %s, want past", got)
	}
	if got := statusOf(t, slots, 660); got != StatusAvailable {
		t.Fatalf("next slot = %s, want available", got)
	}
}

func TestResolveClosedDayOverridesEverything(t *testing.T) {
	cfg := clinicConfig()
	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.Local)
	now := at(saturday, 700)

	slots := Resolve(cfg, saturday, []int{600, 1080}, now)
	if len(slots) == 0 {
		t.Fatal("expected candidate slots on a closed day")
	}
	for _, s := range slots {
		if s.Status != StatusClosed {
			t.Fatalf("slot %d = %s, want closed", s.StartMinute, s.Status)
		}
	}
}

func TestResolveOrderingAndUniqueness(t *testing.T) {
	cfg := clinicConfig()
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.Local)
	now := at(date, 0)

	slots := Resolve(cfg, date, nil, now)

	if slots[0].Session != "Morning" {
		t.Fatalf("first session = %s, want Morning", slots[0].Session)
	}
	if slots[len(slots)-1].Session != "Evening" {
		t.Fatalf("last session = %s, want Evening", slots[len(slots)-1].Session)
	}

	seen := map[int]bool{}
	lastBySession := map[string]int{}
	for _, s := range slots {
		if seen[s.StartMinute] {
			t.Fatalf("duplicate slot %d", s.StartMinute)
		}
		seen[s.StartMinute] = true
		if prev, ok := lastBySession[s.Session]; ok && s.StartMinute <= prev {
			t.Fatalf("session %s not ascending at %d", s.Session, s.StartMinute)
		}
		lastBySession[s.Session] = s.StartMinute
	}
	// 15 Morning + 12 Evening candidates.
	if len(slots) != 27 {
		t.Fatalf("expected 27 slots, got %d", len(slots))
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	cfg := clinicConfig()
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.Local)
	now := at(date, 615)
	booked := []int{640, 1100}

	first := Resolve(cfg, date, booked, now)
	second := Resolve(cfg, date, booked, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs produced different output")
	}
}
