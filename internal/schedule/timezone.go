package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimeZone is used when a caller does not name one.
const DefaultTimeZone = "Asia/Kolkata"

// Location returns the *time.Location for a zone name.
// Empty or unknown names fall back to DefaultTimeZone, then UTC.
func Location(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimeZone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultTimeZone); err == nil {
		return loc
	}
	return time.UTC
}

// ParseTimestamp parses a booking timestamp into loc. Handles:
//   - RFC3339 with offset or Z: "2006-01-02T15:04:05+05:30"
//   - Naive datetime: "2006-01-02T15:04:05", treated as local to loc
//   - Naive datetime without seconds: "2006-01-02T15:04"
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{LocalLayout, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schedule: cannot parse timestamp %q", raw)
}
