package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateKey is a canonical YYYY-MM-DD calendar-day key. It is built from
// explicit calendar fields only, never from a timezone-aware timestamp,
// so two viewers in different timezones always derive the same key for
// the same calendar day. Lexicographic order equals calendar order.
type DateKey string

// TimeOfDay is minutes from midnight. It doubles as the sort value for
// appointments within one day.
type TimeOfDay int

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MakeDateKey serializes explicit calendar fields into a DateKey,
// rejecting impossible dates (Feb-30 and friends).
func MakeDateKey(year, month, day int) (DateKey, error) {
	if !validCalendarDay(year, month, day) {
		return "", fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	return DateKey(fmt.Sprintf("%04d-%02d-%02d", year, month, day)), nil
}

// Date returns the calendar fields the key was built from.
func (k DateKey) Date() (year, month, day int) {
	parts := strings.SplitN(string(k), "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0
	}
	year, _ = strconv.Atoi(parts[0])
	month, _ = strconv.Atoi(parts[1])
	day, _ = strconv.Atoi(parts[2])
	return year, month, day
}

// NormalizeDate parses a canonical YYYY-MM-DD string into a DateKey.
// The string is split into integers directly; no location-based parsing
// is involved, so the result cannot shift across timezones.
func NormalizeDate(dateStr string) (DateKey, error) {
	y, m, d, err := splitCanonicalDate(dateStr)
	if err != nil {
		return "", err
	}
	return MakeDateKey(y, m, d)
}

// NormalizeDateTime parses a date plus an optional HH:MM[:SS] time.
// An empty time string means minute zero.
func NormalizeDateTime(dateStr, timeStr string) (DateKey, TimeOfDay, error) {
	key, err := NormalizeDate(dateStr)
	if err != nil {
		return "", 0, err
	}
	if timeStr == "" {
		return key, 0, nil
	}
	tod, err := ParseTimeOfDay(timeStr)
	if err != nil {
		return "", 0, err
	}
	return key, tod, nil
}

// ParseTimeOfDay parses HH:MM or HH:MM:SS into minutes from midnight.
// Seconds are validated and discarded.
func ParseTimeOfDay(timeStr string) (TimeOfDay, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidDate, timeStr)
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidDate, timeStr)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: time %q", ErrInvalidDate, timeStr)
		}
	}
	return TimeOfDay(hour*60 + minute), nil
}

// ParseDateInput resolves the small set of date formats accepted at the
// integration boundary (YYYY-MM-DD, MM/DD/YYYY, DD-MM-YYYY) into a
// canonical DateKey. Everything past the boundary works with the
// canonical form only.
func ParseDateInput(s string) (DateKey, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, "/"):
		// MM/DD/YYYY
		parts := strings.Split(s, "/")
		if len(parts) != 3 {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		m, err1 := strconv.Atoi(parts[0])
		d, err2 := strconv.Atoi(parts[1])
		y, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return MakeDateKey(y, m, d)
	case len(s) == 10 && s[2] == '-' && s[5] == '-':
		// DD-MM-YYYY
		d, err1 := strconv.Atoi(s[0:2])
		m, err2 := strconv.Atoi(s[3:5])
		y, err3 := strconv.Atoi(s[6:10])
		if err1 != nil || err2 != nil || err3 != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return MakeDateKey(y, m, d)
	default:
		return NormalizeDate(s)
	}
}

// NextDay steps a key one calendar day forward.
func (k DateKey) NextDay() DateKey {
	y, m, d := k.Date()
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return DateKey(fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day()))
}

func splitCanonicalDate(dateStr string) (y, m, d int, err error) {
	parts := strings.Split(dateStr, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	d, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}
	return y, m, d, nil
}

func validCalendarDay(year, month, day int) bool {
	if year < 1 || month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	// time.Date normalizes out-of-range days (Feb-30 becomes Mar-2);
	// a round-trip mismatch therefore means the day does not exist.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}
