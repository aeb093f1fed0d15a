package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"spacebooking-backend/internal/model"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// TimeOfDay parses "HH:MM" into minutes since midnight. "24:00" is accepted
// as the end of the day.
func TimeOfDay(raw string) (model.TimeOfDay, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	return model.NewTimeOfDay(hour, minute), nil
}

// Date parses a calendar date "2006-01-02" as midnight in loc.
func Date(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return t, nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Instant parses an RFC 3339 timestamp. Timestamps without an offset are
// read as wall time in loc.
func Instant(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: want RFC 3339", raw)
}
