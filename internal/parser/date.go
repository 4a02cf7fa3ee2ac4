package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
)

// relativeRegex matches relative date expressions like "+3d", "-1w", "+2h".
var relativeRegex = regexp.MustCompile(`^([+-])(\d+)([mhdw])$`)

// isoDateLayouts are tried before natural-language parsing so that plain
// dates never depend on locale detection.
var isoDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
}

// ParseDate parses a due or start date relative to now.
// Supports formats like:
//   - "2024-03-15", "2024-03-15 14:00" (ISO, local time)
//   - "+3d", "-1w", "+2h" (relative)
//   - "tomorrow", "next friday", "in 3 days" (natural language)
//
// Past dates are accepted; an overdue project is still a valid project.
func ParseDate(field, input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, NewDateError(field, input)
	}

	if match := relativeRegex.FindStringSubmatch(input); match != nil {
		return parseRelativeDate(field, input, match[1], match[2], match[3], now)
	}

	for _, layout := range isoDateLayouts {
		if t, err := time.ParseInLocation(layout, input, now.Location()); err == nil {
			return t, nil
		}
	}

	cfg := &dateparser.Configuration{
		CurrentTime: now,
	}
	result, err := dateparser.Parse(cfg, input)
	if err != nil || result.Time.IsZero() {
		return time.Time{}, NewDateError(field, input)
	}
	return result.Time, nil
}

// parseRelativeDate applies a signed offset to now.
func parseRelativeDate(field, input, sign, numStr, unit string, now time.Time) (time.Time, error) {
	num, err := strconv.Atoi(numStr)
	if err != nil || num <= 0 {
		return time.Time{}, NewDateError(field, input)
	}
	if sign == "-" {
		num = -num
	}

	switch unit {
	case "m":
		return now.Add(time.Duration(num) * time.Minute), nil
	case "h":
		return now.Add(time.Duration(num) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, num), nil
	case "w":
		return now.AddDate(0, 0, 7*num), nil
	}
	return time.Time{}, NewDateError(field, input)
}

// isSameDay checks if two times are on the same day.
func isSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// FormatDueIn describes a due date relative to now, e.g. "due in 3 days",
// "due today" or "overdue by 2 days".
func FormatDueIn(due, now time.Time) string {
	if isSameDay(due, now) {
		return "due today"
	}
	if isSameDay(due, now.AddDate(0, 0, 1)) {
		return "due tomorrow"
	}

	diff := due.Sub(now)
	if diff < 0 {
		return "overdue by " + plural(days(-diff), "day")
	}
	if diff < 14*day {
		return "due in " + plural(days(diff), "day")
	}
	return "due in " + plural(int(diff/week), "week")
}

func days(d time.Duration) int {
	n := int(d / day)
	if n < 1 {
		n = 1
	}
	return n
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
