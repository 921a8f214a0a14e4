// Package availability computes per-slot statuses for a date. It is a pure
// function of the schedule configuration, the existing bookings for the date,
// and the supplied current instant, so results are fully deterministic.
package availability

import (
	"time"

	"github.com/clinislot/clinislot/services/booking-service/internal/schedule"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusPast      Status = "past"
	StatusClosed    Status = "closed"
)

// Slot is one candidate booking unit with its resolved status.
type Slot struct {
	Session     string
	StartMinute int
	Status      Status
}

// Resolve yields every candidate slot for date in configuration order
// (sessions as configured, minutes ascending) with its status. Precedence per
// slot: closed day, then past, then booked, then available.
//
// bookedStarts holds the start minutes of the date's non-cancelled bookings. A
// slot counts as booked when the booking interval [b, b+g) overlaps the slot
// interval [t, t+g); records created at the configured granularity match
// exactly, and a legacy record on an off-grid minute blocks every slot it
// straddles rather than silently colliding with none.
//
// A slot whose start is not strictly after now is past: the boundary instant
// itself is not bookable.
func Resolve(cfg schedule.Config, date time.Time, bookedStarts []int, now time.Time) []Slot {
	closed := cfg.Closed(date)
	g := cfg.SlotMinutes
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var slots []Slot
	for _, session := range cfg.Sessions {
		for _, start := range session.CandidateStarts(g) {
			slot := Slot{Session: session.Name, StartMinute: start}
			switch {
			case closed:
				slot.Status = StatusClosed
			case !midnight.Add(time.Duration(start) * time.Minute).After(now):
				slot.Status = StatusPast
			case overlapsAny(start, g, bookedStarts):
				slot.Status = StatusBooked
			default:
				slot.Status = StatusAvailable
			}
			slots = append(slots, slot)
		}
	}
	return slots
}

func overlapsAny(start, g int, booked []int) bool {
	for _, b := range booked {
		// Half-open intervals: [start,start+g) overlaps [b,b+g) iff start < b+g && b < start+g.
		if start < b+g && b < start+g {
			return true
		}
	}
	return false
}
