package schedule

import (
	"errors"
	"testing"
)

func TestNormalizeDate_RoundTrip(t *testing.T) {
	cases := []struct {
		y, m, d int
	}{
		{2024, 1, 1},
		{2024, 2, 29}, // leap day
		{2024, 12, 31},
		{1999, 6, 15},
	}
	for _, c := range cases {
		key, err := MakeDateKey(c.y, c.m, c.d)
		if err != nil {
			t.Fatalf("MakeDateKey(%d,%d,%d): %v", c.y, c.m, c.d, err)
		}
		back, err := NormalizeDate(string(key))
		if err != nil {
			t.Fatalf("NormalizeDate(%q): %v", key, err)
		}
		if back != key {
			t.Fatalf("round trip mismatch: %q != %q", back, key)
		}
		y, m, d := back.Date()
		if y != c.y || m != c.m || d != c.d {
			t.Fatalf("Date() = (%d,%d,%d), want (%d,%d,%d)", y, m, d, c.y, c.m, c.d)
		}
	}
}

func TestNormalizeDate_RejectsImpossibleDays(t *testing.T) {
	for _, s := range []string{
		"2024-02-30",
		"2023-02-29", // not a leap year
		"2024-13-01",
		"2024-00-10",
		"2024-04-31",
		"garbage",
		"2024-4-1", // not canonical
		"",
	} {
		if _, err := NormalizeDate(s); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("NormalizeDate(%q): want ErrInvalidDate, got %v", s, err)
		}
	}
}

func TestNormalizeDateTime(t *testing.T) {
	key, tod, err := NormalizeDateTime("2024-03-01", "09:30")
	if err != nil {
		t.Fatalf("NormalizeDateTime: %v", err)
	}
	if key != "2024-03-01" || tod != 9*60+30 {
		t.Fatalf("got (%q, %d)", key, tod)
	}

	_, tod, err = NormalizeDateTime("2024-03-01", "")
	if err != nil || tod != 0 {
		t.Fatalf("empty time: tod=%d err=%v", tod, err)
	}

	if _, _, err := NormalizeDateTime("2024-03-01", "14:15:59"); err != nil {
		t.Fatalf("seconds should be accepted: %v", err)
	}
	if _, _, err := NormalizeDateTime("2024-03-01", "24:00"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("24:00: want ErrInvalidDate, got %v", err)
	}
}

func TestParseDateInput_Formats(t *testing.T) {
	cases := map[string]DateKey{
		"2024-06-10": "2024-06-10",
		"06/10/2024": "2024-06-10",
		"10-06-2024": "2024-06-10",
	}
	for in, want := range cases {
		got, err := ParseDateInput(in)
		if err != nil {
			t.Fatalf("ParseDateInput(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseDateInput(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseDateInput("30/40/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("want ErrInvalidDate, got %v", err)
	}
}

func TestNextDay_MonthAndYearBoundaries(t *testing.T) {
	if got := DateKey("2024-01-31").NextDay(); got != "2024-02-01" {
		t.Fatalf("got %q", got)
	}
	if got := DateKey("2024-12-31").NextDay(); got != "2025-01-01" {
		t.Fatalf("got %q", got)
	}
	if got := DateKey("2024-02-28").NextDay(); got != "2024-02-29" {
		t.Fatalf("got %q", got)
	}
}

func TestTimeOfDayString(t *testing.T) {
	if s := TimeOfDay(9*60 + 5).String(); s != "09:05" {
		t.Fatalf("got %q", s)
	}
}
