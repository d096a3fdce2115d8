package utils

import (
	"fmt"
	"strconv"
	"time"
)

// Common time formats recognized when parsing trace timestamps.
const (
	RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"
	ISO8601      = "2006-01-02T15:04:05Z"
	DateOnly     = "2006-01-02"
	DateTime     = "2006-01-02 15:04:05"
)

// ParseFlexible attempts to parse a timestamp from a handful of common string formats.
func ParseFlexible(timeStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		RFC3339Milli,
		ISO8601,
		"2006-01-02T15:04:05",
		DateTime,
		DateOnly,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", timeStr)
}

// ParseUnixTimestamp parses a numeric Unix timestamp, guessing seconds vs.
// milliseconds vs. nanoseconds from its magnitude.
func ParseUnixTimestamp(timestamp string) (time.Time, error) {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	return UnixFromMagnitude(ts), nil
}

// UnixFromMagnitude converts an integer timestamp of unknown resolution
// (seconds, milliseconds, or nanoseconds) to a time.Time using the same
// order-of-magnitude heuristic used across the codebase: values above 10^12
// are treated as nanoseconds, values above 10^10 as milliseconds, else seconds.
func UnixFromMagnitude(ts int64) time.Time {
	switch {
	case ts > 1e12:
		return time.Unix(0, ts).UTC()
	case ts > 1e10:
		return time.Unix(ts/1000, (ts%1000)*int64(time.Millisecond)).UTC()
	default:
		return time.Unix(ts, 0).UTC()
	}
}

// StartOfDay returns midnight UTC for the day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns the Monday 00:00:00 UTC of the ISO-8601 week containing t.
func StartOfWeek(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday = 7 under ISO week numbering
	}
	days := weekday - 1 // days since Monday
	return StartOfDay(t.AddDate(0, 0, -days))
}

// EndOfWeek returns the exclusive end (next Monday 00:00:00 UTC) of the
// ISO-8601 week containing t, suitable as the upper bound of a half-open bucket.
func EndOfWeek(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, 7)
}

// DurationHuman returns a human-readable approximation of a duration.
func DurationHuman(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
