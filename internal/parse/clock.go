package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// [-][d.]h:mm[:ss[.fraction]]
	clockRe = regexp.MustCompile(`^(-)?(?:(\d+)\.)?(\d{1,2}):(\d{1,2})(?::(\d{1,2})(?:\.(\d{1,7}))?)?$`)
	// [-]d:h:mm:ss[.fraction]
	dayClockRe = regexp.MustCompile(`^(-)?(\d+):(\d{1,2}):(\d{1,2}):(\d{1,2})(?:\.(\d{1,7}))?$`)
	// [-]d
	daysRe = regexp.MustCompile(`^(-)?(\d{1,8})$`)
)

// maxDays is the largest day count a time.Duration can hold.
const maxDays = math.MaxInt64 / int64(24*time.Hour)

// ParseClockOffset parses the estimate field operators fill in. The field
// holds an offset from midnight (usually a clock time such as "10:30"), not a
// duration. A bare integer is a whole number of days.
func ParseClockOffset(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty clock offset")
	}

	if m := daysRe.FindStringSubmatch(s); m != nil {
		days, err := parseDays(m[2])
		if err != nil {
			return 0, fmt.Errorf("clock offset out of range: %q: %w", raw, err)
		}
		return signed(m[1], time.Duration(days)*24*time.Hour), nil
	}

	var neg, days, hours, minutes, seconds, fraction string
	if m := clockRe.FindStringSubmatch(s); m != nil {
		neg, days, hours, minutes, seconds, fraction = m[1], m[2], m[3], m[4], m[5], m[6]
	} else if m := dayClockRe.FindStringSubmatch(s); m != nil {
		neg, days, hours, minutes, seconds, fraction = m[1], m[2], m[3], m[4], m[5], m[6]
	} else {
		return 0, fmt.Errorf("unable to parse clock offset: %q", raw)
	}

	d, err := parseDays(days)
	if err != nil {
		return 0, fmt.Errorf("clock offset out of range: %q: %w", raw, err)
	}
	h, mi, sec := atoi(hours), atoi(minutes), atoi(seconds)
	if h > 23 || mi > 59 || sec > 59 {
		return 0, fmt.Errorf("clock offset out of range: %q", raw)
	}

	rest := time.Duration(h)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(sec)*time.Second
	if fraction != "" {
		// fraction is in units of 10^-len seconds; pad to 100ns ticks
		ticks := atoi(fraction + strings.Repeat("0", 7-len(fraction)))
		rest += time.Duration(ticks) * 100 * time.Nanosecond
	}
	if time.Duration(d)*24*time.Hour > math.MaxInt64-rest {
		return 0, fmt.Errorf("clock offset out of range: %q", raw)
	}
	total := time.Duration(d)*24*time.Hour + rest

	return signed(neg, total), nil
}

func signed(neg string, d time.Duration) time.Duration {
	if neg != "" {
		return -d
	}
	return d
}

// parseDays rejects day counts that would overflow a time.Duration on
// their own.
func parseDays(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n > maxDays {
		return 0, fmt.Errorf("%d days exceeds %d", n, maxDays)
	}
	return n, nil
}

// atoi converts the bounded hour, minute, second and fraction groups.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
