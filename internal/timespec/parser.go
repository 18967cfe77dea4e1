// Package timespec parses the --since/--until values accepted by the listing commands.
package timespec

import (
	"fmt"
	"time"
)

// Parse turns spec into an absolute time. A Go duration ("90m", "2h") counts back from
// now; anything else must be an RFC3339 timestamp.
func Parse(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("negative duration: %s", spec)
		}
		return now.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use a duration like '1h30m' or RFC3339 like '2026-01-02T15:04:05Z')", spec)
}

// Window is a half-open time filter. Zero bounds are unbounded.
type Window struct {
	Since time.Time
	Until time.Time
}

// ParseWindow parses both flags. Empty flags leave that end open.
func ParseWindow(since, until string, now time.Time) (Window, error) {
	var w Window
	var err error

	if since != "" {
		if w.Since, err = Parse(since, now); err != nil {
			return Window{}, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if w.Until, err = Parse(until, now); err != nil {
			return Window{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if !w.Since.IsZero() && !w.Until.IsZero() && !w.Since.Before(w.Until) {
		return Window{}, fmt.Errorf("--since must be before --until")
	}
	return w, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && t.After(w.Until) {
		return false
	}
	return true
}
