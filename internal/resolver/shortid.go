// Package resolver turns the short id prefixes users type into full gist or draft ids.
package resolver

import (
	"context"
	"fmt"
	"strings"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// Ids are ULIDs whose first 10 characters are a millisecond timestamp, so 6 characters
// still narrow a prefix to a window of about half a minute.
const MinShortIDLength = 6

// ULIDLength is the length of a full id.
const ULIDLength = 26

// Index is a set of ids that can be searched by prefix.
type Index interface {
	Exists(ctx context.Context, id string) (bool, error)
	ScanIDs(ctx context.Context, prefix string) ([]string, error)
}

// Resolve resolves a short ID prefix to a full id. kind names the thing being looked up
// ("gist", "draft") in error messages.
//
// The function handles three cases:
// 1. Input is already a full id - validates existence
// 2. Input is too short - returns validation error
// 3. Input is a short prefix - scans for matches and returns the unique result
func Resolve(ctx context.Context, idx Index, kind, shortID string) (string, error) {
	shortID = strings.ToUpper(strings.TrimSpace(shortID))
	if !isIDText(shortID) {
		return "", fmt.Errorf("invalid %s id %q: ids contain only letters and digits", kind, shortID)
	}

	if len(shortID) == ULIDLength {
		ok, err := idx.Exists(ctx, shortID)
		if err != nil {
			return "", fmt.Errorf("failed to verify %s existence: %w", kind, err)
		}
		if !ok {
			return "", &NotFoundError{Kind: kind, ShortID: shortID}
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := idx.ScanIDs(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for %s: %w", kind, err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: kind, ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{Kind: kind, ShortID: shortID, Matches: matches}
	}
}

func isIDText(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// NotFoundError indicates no ids matched the short ID.
type NotFoundError struct {
	Kind    string
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %ss found matching '%s'", e.Kind, e.ShortID)
}

// AmbiguousError indicates multiple ids matched the short ID.
type AmbiguousError struct {
	Kind    string
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d %ss", e.ShortID, len(e.Matches), e.Kind)
}

// FormatAmbiguousError lists the matching ids (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d %ss:\n", err.ShortID, len(err.Matches), err.Kind)

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for i := 0; i < displayCount; i++ {
		fmt.Fprintf(&b, "  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	fmt.Fprintf(&b, "\nUse a longer prefix to uniquely identify the %s.", err.Kind)
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
