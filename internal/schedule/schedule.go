// Package schedule computes run times for recurring market scans. An
// automation names the weekdays it runs on, a local time of day, and an
// IANA timezone; everything stored and exchanged stays in UTC.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// NormalizeDays lowercases and validates a list of three-letter weekday
// names, dropping duplicates. An empty list is valid and means every day.
func NormalizeDays(days []string) ([]string, error) {
	seen := map[string]bool{}
	out := make([]string, 0, len(days))
	for _, day := range days {
		name := strings.ToLower(strings.TrimSpace(day))
		if _, ok := weekdays[name]; !ok {
			return nil, fmt.Errorf("unknown weekday: %q", day)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// ParseTimeOfDay parses a 24-hour "HH:MM" value.
func ParseTimeOfDay(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time of day must be HH:MM, got %q", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// NextRun returns the first scheduled occurrence strictly after the given
// instant, in UTC. An empty days list runs daily; an empty timezone is UTC.
func NextRun(days []string, timeOfDay, timezone string, after time.Time) (time.Time, error) {
	normalized, err := NormalizeDays(days)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	allowed := map[time.Weekday]bool{}
	for _, day := range normalized {
		allowed[weekdays[day]] = true
	}

	local := after.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	for i := 0; i < 8; i++ {
		if candidate.After(after) && (len(allowed) == 0 || allowed[candidate.Weekday()]) {
			return candidate.UTC(), nil
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, fmt.Errorf("no runnable day within a week of %s", after.Format(time.RFC3339))
}
