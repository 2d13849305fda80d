package scheduling

import (
	"regexp"
	"strconv"
	"time"
)

// Restricted ISO-8601 duration subset: optional days, optional time part
// with integer hours/minutes/seconds. "PT15M", "P1D", "P1DT6H" parse;
// fractions, weeks and months do not.
var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration parses the restricted duration subset. The second
// return value reports whether the input was well-formed; malformed or
// empty strings are reported as absent rather than raising.
func ParseISODuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	match := isoDurationPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, false
	}
	days := atoiDefault(match[1])
	hours := atoiDefault(match[2])
	minutes := atoiDefault(match[3])
	seconds := atoiDefault(match[4])
	return time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, true
}

// ShouldRun decides whether enough time has elapsed since the last run.
// A missing or unparseable period never runs; a link with no recorded
// last run always does (cold start fires).
func ShouldRun(periodISO string, lastRun, now time.Time) bool {
	period, ok := ParseISODuration(periodISO)
	if !ok || period <= 0 {
		return false
	}
	if lastRun.IsZero() {
		return true
	}
	return now.Sub(lastRun) >= period
}

func atoiDefault(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
