package domain

import "time"

// DayFormat is the calendar-day representation used throughout the API.
const DayFormat = "2006-01-02"

// ParseDay parses a YYYY-MM-DD string into its calendar day. Invalid days
// (wrong format, out-of-range dates) are rejected.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayFormat, s)
}

// FormatDay renders t as a YYYY-MM-DD string.
func FormatDay(t time.Time) string {
	return t.Format(DayFormat)
}

// StartOfWeek returns the Monday of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return t.AddDate(0, 0, -offset)
}

// WeekWindow computes the inclusive 7-day window [start, start+6] for a week
// beginning at the given day.
func WeekWindow(start string) (from, to string, err error) {
	day, err := ParseDay(start)
	if err != nil {
		return "", "", err
	}
	return start, FormatDay(day.AddDate(0, 0, 6)), nil
}
