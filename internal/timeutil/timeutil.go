package timeutil

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidDay    = errors.New("invalid day, expected YYYY-MM-DD")
)

// DayLayout names one UTC calendar day, e.g. benchmark file names.
const DayLayout = "2006-01-02"

// Day formats t as its UTC calendar day.
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseDay validates a YYYY-MM-DD string and returns midnight UTC.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, strings.TrimSpace(day), time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}
	return t, nil
}

// TruncateToDay normalizes the timestamp to midnight in the provided zone.
func TruncateToDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParsePeriod reads human periods such as "24 hours", "7 days", "1 year"
// or the compact "7d"/"24h". "unlimited" returns ok=false with no error.
func ParsePeriod(period string) (d time.Duration, ok bool, err error) {
	p := strings.ToLower(strings.TrimSpace(period))
	if p == "unlimited" {
		return 0, false, nil
	}
	value, unit, err := splitPeriod(p)
	if err != nil {
		return 0, false, err
	}
	switch unit {
	case "h", "hour", "hours":
		return time.Duration(value) * time.Hour, true, nil
	case "d", "day", "days":
		return time.Duration(value) * 24 * time.Hour, true, nil
	case "w", "week", "weeks":
		return time.Duration(value) * 7 * 24 * time.Hour, true, nil
	case "y", "year", "years":
		return time.Duration(value) * 365 * 24 * time.Hour, true, nil
	default:
		return 0, false, ErrInvalidPeriod
	}
}

func splitPeriod(p string) (int, string, error) {
	if fields := strings.Fields(p); len(fields) == 2 {
		value, err := strconv.Atoi(fields[0])
		if err != nil || value <= 0 {
			return 0, "", ErrInvalidPeriod
		}
		return value, fields[1], nil
	}
	if len(p) < 2 {
		return 0, "", ErrInvalidPeriod
	}
	value, err := strconv.Atoi(p[:len(p)-1])
	if err != nil || value <= 0 {
		return 0, "", ErrInvalidPeriod
	}
	return value, p[len(p)-1:], nil
}
