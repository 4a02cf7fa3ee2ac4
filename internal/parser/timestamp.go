package parser

import (
	"regexp"
	"strings"
	"time"
)

// periodRegex matches period expressions like "this week", "last month".
var periodRegex = regexp.MustCompile(`(?i)^(this|current|last|previous)\s+(day|week|month|quarter|year)$`)

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ParseTimestamp parses a point in time such as a timer start. "now" and
// the empty string mean now; a period expression yields its start.
func ParseTimestamp(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "now") {
		return now, nil
	}

	if periodRegex.MatchString(input) {
		r, err := GetPeriodRange(input, now)
		if err != nil {
			return time.Time{}, err
		}
		return r.Start, nil
	}

	t, err := ParseDate("timestamp", input, now)
	if err != nil {
		return time.Time{}, NewTimestampError(input)
	}
	return t, nil
}

// GetPeriodRange returns the range covered by a named period relative to
// now: "today", "yesterday", or "this|last <day|week|month|quarter|year>".
// Weeks start on Monday.
func GetPeriodRange(period string, now time.Time) (TimeRange, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch p {
	case "today":
		return TimeRange{Start: midnight, End: midnight.AddDate(0, 0, 1)}, nil
	case "yesterday":
		return TimeRange{Start: midnight.AddDate(0, 0, -1), End: midnight}, nil
	}

	match := periodRegex.FindStringSubmatch(p)
	if match == nil {
		return TimeRange{}, NewPeriodError(period)
	}
	previous := match[1] == "last" || match[1] == "previous"

	unit := match[2]
	var start time.Time
	switch unit {
	case "day":
		start = midnight
	case "week":
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday
		}
		start = midnight.AddDate(0, 0, 1-weekday)
	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case "quarter":
		quarter := (int(now.Month()) - 1) / 3
		start = time.Date(now.Year(), time.Month(quarter*3+1), 1, 0, 0, 0, 0, now.Location())
	case "year":
		start = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	}

	end := stepPeriod(start, unit, 1)
	if previous {
		end = start
		start = stepPeriod(start, unit, -1)
	}
	return TimeRange{Start: start, End: end}, nil
}

// stepPeriod moves t by n periods of unit.
func stepPeriod(t time.Time, unit string, n int) time.Time {
	switch unit {
	case "week":
		return t.AddDate(0, 0, 7*n)
	case "month":
		return t.AddDate(0, n, 0)
	case "quarter":
		return t.AddDate(0, 3*n, 0)
	case "year":
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}
