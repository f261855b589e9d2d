package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRange(t *testing.T) {
	now := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d, h, min, s, ns int) time.Time {
		return time.Date(y, m, d, h, min, s, ns, time.UTC)
	}

	tests := []struct {
		name     string
		start    string
		end      string
		wantFrom *time.Time
		wantTo   *time.Time
	}{
		{
			name:     "single day",
			start:    "2024-03-01",
			end:      "2024-03-01",
			wantFrom: ptr(day(2024, 3, 1, 0, 0, 0, 0)),
			wantTo:   ptr(day(2024, 3, 1, 23, 59, 59, 999999000)),
		},
		{
			name:     "time of day is discarded",
			start:    "2024-03-01T18:45:00",
			end:      "2024-03-03 06:00:00",
			wantFrom: ptr(day(2024, 3, 1, 0, 0, 0, 0)),
			wantTo:   ptr(day(2024, 3, 3, 23, 59, 59, 999999000)),
		},
		{
			name:     "start only",
			start:    "2024-03-01T12:00:00Z",
			wantFrom: ptr(day(2024, 3, 1, 0, 0, 0, 0)),
		},
		{
			name:   "end only caps at end of today",
			end:    "2024-03-01",
			wantTo: ptr(day(2024, 6, 15, 23, 59, 59, 999999000)),
		},
		{
			name: "no bounds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, err := ParseTimeRange(tt.start, tt.end, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, rng.From)
			assert.Equal(t, tt.wantTo, rng.To)
		})
	}
}

func TestParseTimeRange_Invalid(t *testing.T) {
	now := time.Now()

	_, err := ParseTimeRange("yesterday", "", now)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseTimeRange("2024-03-01", "03/02/2024", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTimeRange_Contains(t *testing.T) {
	rng, err := ParseTimeRange("2024-03-01", "2024-03-01", time.Now())
	require.NoError(t, err)

	assert.False(t, rng.Contains(time.Date(2024, 2, 29, 23, 59, 59, 999999000, time.UTC)))
	assert.True(t, rng.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, rng.Contains(time.Date(2024, 3, 1, 23, 59, 59, 999999000, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))

	assert.True(t, TimeRange{}.Contains(time.Now()))
}

func ptr(t time.Time) *time.Time { return &t }
