// Package view derives role-scoped, serial-numbered listings from booking
// records. It only ever reads snapshots; nothing here mutates the ledger.
package view

import (
	"sort"

	"github.com/clinislot/clinislot/services/booking-service/internal/model"
	"github.com/clinislot/clinislot/services/booking-service/internal/schedule"
)

// Entry is one listing row. Serial is the record's 1-based rank among all of
// the day's active bookings ordered by start time, regardless of how many of
// those rows the viewer is allowed to see.
type Entry struct {
	ID          string
	Serial      int
	SubjectName string
	SubjectAge  int
	StartMinute int
}

// DayGroup is one date's listing. Label is the human-readable date header.
type DayGroup struct {
	Date    string
	Label   string
	Entries []Entry
}

// Project groups active records by date and orders them for display: dates in
// calendar order, entries by ascending start time. Operators see every entry;
// patients see only entries whose owner key matches theirs, keeping the
// serial each would have under the full ordering and learning nothing about
// other subjects.
func Project(records []model.Appointment, viewer model.Identity) []DayGroup {
	byDate := make(map[string][]model.Appointment)
	for _, r := range records {
		if !r.Active() {
			continue
		}
		byDate[r.Date] = append(byDate[r.Date], r)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	// Sort by parsed calendar date, not raw strings, so a malformed key can
	// never interleave months.
	sort.Slice(dates, func(i, j int) bool {
		di, erri := schedule.ParseDateKey(dates[i])
		dj, errj := schedule.ParseDateKey(dates[j])
		if erri != nil || errj != nil {
			return dates[i] < dates[j]
		}
		return di.Before(dj)
	})

	var groups []DayGroup
	for _, d := range dates {
		recs := byDate[d]
		sort.Slice(recs, func(i, j int) bool { return recs[i].StartMinute < recs[j].StartMinute })

		group := DayGroup{Date: d, Label: dateLabel(d)}
		for i, r := range recs {
			if !viewer.Operator() && r.OwnerKey != viewer.OwnerKey {
				continue
			}
			group.Entries = append(group.Entries, Entry{
				ID:          r.ID,
				Serial:      i + 1,
				SubjectName: r.SubjectName,
				SubjectAge:  r.SubjectAge,
				StartMinute: r.StartMinute,
			})
		}
		if len(group.Entries) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

func dateLabel(key string) string {
	d, err := schedule.ParseDateKey(key)
	if err != nil {
		return key
	}
	return d.Format("Mon Jan 2 2006")
}
