package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayBounds(t *testing.T) {
	ts := time.Date(2024, 3, 1, 17, 42, 5, 123, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 999999000, time.UTC), EndOfDay(ts))
}

func TestParseAny(t *testing.T) {
	ts, ok := ParseAny("2024-03-01 10:00:00", time.RFC3339, "2006-01-02 15:04:05")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ts)

	_, ok = ParseAny("garbage", time.RFC3339)
	assert.False(t, ok)
}
