package weather

import (
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/weather-feed/internal/common"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ParseTimeRange builds the city-history filter from the start_time and
// end_time query values. Only the calendar day of each bound is used:
//
//   - start only: timestamp >= start of the start day
//   - end only:   timestamp <= end of today (now's day, UTC)
//   - both:       start of the start day <= timestamp <= end of the end day
//
// The end-only case ignores the given day and caps at today.
func ParseTimeRange(start, end string, now time.Time) (TimeRange, error) {
	var rng TimeRange
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start != "" {
		ts, ok := common.ParseAny(start, dateLayouts...)
		if !ok {
			return rng, fmt.Errorf("%w: invalid start_time %q", ErrValidation, start)
		}
		from := common.StartOfDay(ts).UTC()
		rng.From = &from
	}

	if end != "" {
		ts, ok := common.ParseAny(end, dateLayouts...)
		if !ok {
			return rng, fmt.Errorf("%w: invalid end_time %q", ErrValidation, end)
		}
		var to time.Time
		if rng.From != nil {
			to = common.EndOfDay(ts).UTC()
		} else {
			to = common.EndOfDay(now.UTC())
		}
		rng.To = &to
	}

	return rng, nil
}
