// Package schedule defines the clinic's operating calendar: named daily
// sessions, the fixed slot granularity that subdivides them, closed weekdays,
// and the rolling booking window.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session is a named contiguous operating window within a day, expressed in
// minutes since midnight. Sessions never span midnight.
type Session struct {
	Name        string
	StartMinute int
	EndMinute   int
}

// CandidateStarts lists the bookable start offsets of s at granularity g,
// ascending. A tail remainder shorter than g yields no slot.
func (s Session) CandidateStarts(g int) []int {
	if g <= 0 {
		return nil
	}
	var starts []int
	for t := s.StartMinute; t+g <= s.EndMinute; t += g {
		starts = append(starts, t)
	}
	return starts
}

// Config is the fixed scheduling configuration for the clinic.
type Config struct {
	Sessions       []Session
	SlotMinutes    int
	WindowDays     int
	ClosedWeekdays []time.Weekday
}

// Validate rejects configurations the engine cannot serve: non-positive
// granularity, empty or inverted sessions, overlapping or unordered sessions.
func (c Config) Validate() error {
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("slot granularity must be positive, got %d", c.SlotMinutes)
	}
	if c.WindowDays < 0 {
		return fmt.Errorf("booking window days must not be negative, got %d", c.WindowDays)
	}
	if len(c.Sessions) == 0 {
		return fmt.Errorf("at least one session is required")
	}
	prevEnd := -1
	for _, s := range c.Sessions {
		if s.Name == "" {
			return fmt.Errorf("session name must not be empty")
		}
		if s.StartMinute < 0 || s.EndMinute > minutesPerDay {
			return fmt.Errorf("session %s outside the day: [%d, %d)", s.Name, s.StartMinute, s.EndMinute)
		}
		if s.StartMinute >= s.EndMinute {
			return fmt.Errorf("session %s has start %d >= end %d", s.Name, s.StartMinute, s.EndMinute)
		}
		if s.StartMinute < prevEnd {
			return fmt.Errorf("session %s overlaps the previous session", s.Name)
		}
		prevEnd = s.EndMinute
	}
	return nil
}

// Closed reports whether date falls on a closed weekday.
func (c Config) Closed(date time.Time) bool {
	for _, wd := range c.ClosedWeekdays {
		if date.Weekday() == wd {
			return true
		}
	}
	return false
}

// WithinWindow reports whether date lies in [today, today+WindowDays],
// comparing calendar keys in the local zone.
func (c Config) WithinWindow(date, today time.Time) bool {
	dk := DateKey(date)
	if dk < DateKey(today) {
		return false
	}
	last := today.AddDate(0, 0, c.WindowDays)
	return dk <= DateKey(last)
}

// ContainsStart reports whether minute is a candidate start of some session.
func (c Config) ContainsStart(minute int) bool {
	for _, s := range c.Sessions {
		if minute < s.StartMinute || minute+c.SlotMinutes > s.EndMinute {
			continue
		}
		if (minute-s.StartMinute)%c.SlotMinutes == 0 {
			return true
		}
	}
	return false
}

// ParseSessions parses the SESSIONS env format:
// "Morning=600-900,Evening=1080-1320".
func ParseSessions(raw string) ([]Session, error) {
	var sessions []Session
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, window, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed session %q (want Name=start-end)", part)
		}
		lo, hi, ok := strings.Cut(window, "-")
		if !ok {
			return nil, fmt.Errorf("malformed session window %q", window)
		}
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("malformed session start %q", lo)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("malformed session end %q", hi)
		}
		sessions = append(sessions, Session{
			Name:        strings.TrimSpace(name),
			StartMinute: start,
			EndMinute:   end,
		})
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("no sessions in %q", raw)
	}
	return sessions, nil
}

// ParseWeekdays parses a comma-separated list of weekday numbers (0=Sunday).
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}
