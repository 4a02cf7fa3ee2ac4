package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// durationPart matches one "<number><unit>" term, e.g. "2h", "30 min", "1.5d".
var durationPart = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*([a-z]*)\s*`)

// ParseDuration parses a human-readable duration string.
// Supports formats like:
//   - "2h" or "2 hours"
//   - "30m" or "30 minutes"
//   - "1h30m" or "1 hour 30 minutes"
//   - "14d" or "2w" (days and weeks)
//   - "2.5h" (2 hours 30 minutes)
//
// A bare number is read as hours.
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, NewDurationError(input)
	}

	// Try standard Go duration format first (e.g., "2h30m")
	if d, err := time.ParseDuration(input); err == nil {
		if d <= 0 {
			return 0, NewDurationError(input)
		}
		return d, nil
	}

	parts := durationPart.FindAllStringSubmatchIndex(input, -1)
	if parts == nil || parts[0][0] != 0 {
		return 0, NewDurationError(input)
	}

	var total time.Duration
	end := 0
	for _, p := range parts {
		if p[0] != end {
			return 0, NewDurationError(input)
		}
		end = p[1]

		value, err := strconv.ParseFloat(input[p[2]:p[3]], 64)
		if err != nil {
			return 0, NewDurationError(input)
		}
		unit, ok := unitDuration(strings.ToLower(input[p[4]:p[5]]))
		if !ok {
			return 0, NewDurationError(input)
		}
		total += time.Duration(value * float64(unit))
	}
	if end != len(input) || total <= 0 {
		return 0, NewDurationError(input)
	}
	return total, nil
}

// unitDuration returns the length of one unit.
func unitDuration(unit string) (time.Duration, bool) {
	switch unit {
	case "w", "wk", "wks", "week", "weeks":
		return week, true
	case "d", "day", "days":
		return day, true
	case "", "h", "hr", "hrs", "hour", "hours":
		return time.Hour, true
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute, true
	case "s", "sec", "secs", "second", "seconds":
		return time.Second, true
	}
	return 0, false
}
