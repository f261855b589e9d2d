package common

import "time"

// StartOfDay returns midnight of t's calendar day, in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last microsecond of t's calendar day, in t's location.
// Microsecond precision matches what the SQL stores keep.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999999*time.Microsecond), t.Location())
}

// ParseAny tries each layout in order and returns the first successful parse.
// Layouts without a zone are interpreted as UTC.
func ParseAny(s string, layouts ...string) (time.Time, bool) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
