package parse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// TimestampLayout is the second-precision layout of detail from/start times.
	// Lexicographic order on this layout matches chronological order.
	TimestampLayout = "2006-01-02 15:04:05"
	// DayLayout is the calendar-day layout used for summary dates.
	DayLayout = "2006-01-02"
)

// FormatTimestamp renders t in loc using TimestampLayout.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// Midnight returns the start of t's calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// Day formats t's calendar day in loc.
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// ParseDay accepts a yyyy-MM-dd day, a TimestampLayout value or RFC3339 and
// returns the midnight of that day in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DayLayout, TimestampLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Midnight(t, loc), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Midnight(t, loc), nil
	}
	return time.Time{}, fmt.Errorf("unable to parse day: %q", s)
}

// FormatMinutes rounds minutes half-to-even at two decimals and renders the
// shortest representation ("30", "40.5", "12.33").
func FormatMinutes(minutes float64) string {
	r := math.RoundToEven(minutes*100) / 100
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// FormatEstimate renders estimate minutes with two fixed decimals.
func FormatEstimate(minutes float64) string {
	return strconv.FormatFloat(minutes, 'f', 2, 64)
}

// ParseMinutes parses a stored minutes string such as an estimate.
func ParseMinutes(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
