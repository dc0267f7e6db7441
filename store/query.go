package store

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`^(\d+)([hdwmy])$`)

const day = 24 * time.Hour

// durationUnits maps the unit letters of ParseDuration to their length.
// Months and years are calendar approximations.
var durationUnits = map[string]time.Duration{
	"h": time.Hour,
	"d": day,
	"w": 7 * day,
	"m": 30 * day,
	"y": 365 * day,
}

// ParseDuration parses an age such as "12h", "7d", "2w", "3m" or "1y".
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: want a count and one of h, d, w, m, y (e.g. 30d)", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * durationUnits[m[2]], nil
}

// OlderThan returns the instant the given age before now.
func OlderThan(s string) (time.Time, error) {
	d, err := ParseDuration(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(-d), nil
}

// BuildQueryOptions turns the history flags into QueryOptions. An empty since
// leaves the runs unbounded in time.
func BuildQueryOptions(limit, offset int, since, jobID string) (QueryOptions, error) {
	opts := QueryOptions{Limit: limit, Offset: offset, JobID: jobID}
	if since == "" {
		return opts, nil
	}

	cutoff, err := OlderThan(since)
	if err != nil {
		return opts, fmt.Errorf("failed to parse --since: %w", err)
	}
	unix := cutoff.Unix()
	opts.SinceTime = &unix
	return opts, nil
}
