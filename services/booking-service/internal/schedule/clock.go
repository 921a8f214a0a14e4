package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrClockRange marks a minute value outside [0, 1439].
var ErrClockRange = errors.New("minutes out of range")

const minutesPerDay = 24 * 60

// DateKey renders t as the canonical local YYYY-MM-DD key. All date equality
// in the engine goes through this key; records never compare raw time.Time
// values, which would reintroduce timezone-shifted dates.
func DateKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// ParseDateKey validates and parses a YYYY-MM-DD key in the local zone.
func ParseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", key, time.Local)
}

// ClockLabel renders a minutes-since-midnight offset as 24-hour "HH:MM".
func ClockLabel(minutes int) (string, error) {
	if minutes < 0 || minutes >= minutesPerDay {
		return "", fmt.Errorf("%w: %d", ErrClockRange, minutes)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// ParseClock is the inverse of ClockLabel.
func ParseClock(label string) (int, error) {
	parts := strings.SplitN(label, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("malformed clock label %q", label)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed clock label %q", label)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed clock label %q", label)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrClockRange, label)
	}
	return h*60 + m, nil
}

// Label12 converts a 24-hour "HH:MM" label to "H:MM AM/PM".
// Hour 0 renders as 12 AM and hour 12 as 12 PM.
func Label12(clock string) (string, error) {
	minutes, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	h := minutes / 60
	m := minutes % 60
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h = h % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, m, period), nil
}
