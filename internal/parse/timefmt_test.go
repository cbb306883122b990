package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMinutes(t *testing.T) {
	testCases := []struct {
		minutes  float64
		expected string
	}{
		{30, "30"},
		{40.5, "40.5"},
		{12.3333333, "12.33"},
		{0.125, "0.12"},
		{0, "0"},
		{-5.25, "-5.25"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, FormatMinutes(tc.minutes), "minutes=%v", tc.minutes)
	}
}

func TestFormatEstimate(t *testing.T) {
	assert.Equal(t, "15.00", FormatEstimate(15))
	assert.Equal(t, "-30.50", FormatEstimate(-30.5))
}

func TestParseMinutes(t *testing.T) {
	v, ok := ParseMinutes("15")
	assert.True(t, ok)
	assert.Equal(t, 15.0, v)

	v, ok = ParseMinutes(" -2.50 ")
	assert.True(t, ok)
	assert.Equal(t, -2.5, v)

	_, ok = ParseMinutes("")
	assert.False(t, ok)

	_, ok = ParseMinutes("soon")
	assert.False(t, ok)

	_, ok = ParseMinutes("NaN")
	assert.False(t, ok)
}

func TestTimestampRoundTrip(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	ts := time.Date(2025, 3, 4, 1, 2, 3, 0, time.UTC)

	s := FormatTimestamp(ts, loc)
	assert.Equal(t, "2025-03-04 08:02:03", s)

	back, err := ParseTimestamp(s, loc)
	require.NoError(t, err)
	assert.True(t, back.Equal(ts))

	_, err = ParseTimestamp("04/03/2025", loc)
	assert.Error(t, err)
}

func TestDayHelpers(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	ts := time.Date(2025, 3, 4, 20, 0, 0, 0, time.UTC) // 03:00 next day in ICT

	assert.Equal(t, "2025-03-05", Day(ts, loc))
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, loc), Midnight(ts, loc))

	for _, raw := range []string{"2025-03-05", "2025-03-05 13:45:00", "2025-03-05T06:45:00+07:00"} {
		d, err := ParseDay(raw, loc)
		require.NoError(t, err, raw)
		assert.Equal(t, "2025-03-05", Day(d, loc), raw)
	}

	_, err := ParseDay("yesterday", loc)
	assert.Error(t, err)
}
