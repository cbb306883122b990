package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseClockOffset(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  time.Duration
		expectErr bool
	}{
		{name: "Hours and minutes", raw: "10:30", expected: 10*time.Hour + 30*time.Minute},
		{name: "Single digit hour", raw: "9:05", expected: 9*time.Hour + 5*time.Minute},
		{name: "With seconds", raw: "08:15:30", expected: 8*time.Hour + 15*time.Minute + 30*time.Second},
		{name: "With fraction", raw: "00:00:01.5", expected: 1500 * time.Millisecond},
		{name: "Day prefix with dot", raw: "1.02:00", expected: 26 * time.Hour},
		{name: "Day prefix with colon", raw: "1:02:00:00", expected: 26 * time.Hour},
		{name: "Bare integer is days", raw: "15", expected: 15 * 24 * time.Hour},
		{name: "Negative", raw: "-01:00", expected: -time.Hour},
		{name: "Surrounding spaces", raw: " 07:45 ", expected: 7*time.Hour + 45*time.Minute},
		{name: "Empty", raw: "", expectErr: true},
		{name: "Hour out of range", raw: "24:00", expectErr: true},
		{name: "Minute out of range", raw: "10:60", expectErr: true},
		{name: "Free text", raw: "about an hour", expectErr: true},
		{name: "Decimal minutes", raw: "15.5", expectErr: true},
		{name: "Largest day count", raw: "106751", expected: 106751 * 24 * time.Hour},
		{name: "Largest day count with clock", raw: "106751.23:00", expected: 106751*24*time.Hour + 23*time.Hour},
		{name: "Largest day count with clock overflows duration", raw: "106751.23:59:59", expectErr: true},
		{name: "Day count overflows duration", raw: "200000", expectErr: true},
		{name: "Negative day count overflows duration", raw: "-200000", expectErr: true},
		{name: "Dot day prefix overflows int", raw: "99999999999999999999.01:00", expectErr: true},
		{name: "Colon day prefix overflows int", raw: "99999999999999999999:1:00:00", expectErr: true},
		{name: "Colon day prefix overflows duration", raw: "106752:0:00:00", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClockOffset(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, got)
			}
		})
	}
}
