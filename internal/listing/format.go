// Package listing renders gists and drafts for the CLI as tables or JSON.
package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dyluth/playbox/internal/drafts"
	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/timespec"
	"github.com/dyluth/playbox/pkg/gist"
)

// OutputFormat selects how a list is written.
type OutputFormat string

const (
	// OutputFormatDefault is a table with truncated columns.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL writes one JSON object per line.
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	}
	return "", fmt.Errorf("unknown output format %q (use default or jsonl)", s)
}

// FilterGists keeps the gists created inside w.
func FilterGists(gists []*gist.Gist, w timespec.Window) []*gist.Gist {
	out := make([]*gist.Gist, 0, len(gists))
	for _, g := range gists {
		if w.Contains(time.UnixMilli(g.CreatedAtMs)) {
			out = append(out, g)
		}
	}
	return out
}

// FilterDrafts keeps the drafts created inside w.
func FilterDrafts(ds []*drafts.Draft, w timespec.Window) []*drafts.Draft {
	out := make([]*drafts.Draft, 0, len(ds))
	for _, d := range ds {
		if w.Contains(d.CreatedAt) {
			out = append(out, d)
		}
	}
	return out
}

// FormatGists writes gists as a table and returns how many rows were written.
func FormatGists(w io.Writer, gists []*gist.Gist, owner string, now time.Time) int {
	if len(gists) == 0 {
		fmt.Fprintf(w, "No gists found for '%s'\n", owner)
		return 0
	}

	fmt.Fprintf(w, "Gists for '%s':\n\n", owner)
	fmt.Fprintf(w, "%-10s %-12s %-6s %s\n", "ID", "UPDATED", "FILES", "DESCRIPTION")
	fmt.Fprintf(w, "%-10s %-12s %-6s %s\n", "----------", "------------", "------", "----------------------------------------")

	for _, g := range gists {
		fmt.Fprintf(w, "%-10s %-12s %-6d %s\n",
			formatID(g.ID),
			formatAge(g.UpdatedAtMs, now),
			len(g.Files),
			formatText(g.Description),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(gists), plural(len(gists), "gist"))
	return len(gists)
}

// FormatDrafts writes local drafts as a table and returns how many rows were written.
func FormatDrafts(w io.Writer, ds []*drafts.Draft, now time.Time) int {
	if len(ds) == 0 {
		fmt.Fprintln(w, "No drafts found")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-12s %-8s %s\n", "ID", "SAVED", "SIZE", "TITLE")
	fmt.Fprintf(w, "%-10s %-12s %-8s %s\n", "----------", "------------", "--------", "----------------------------------------")

	for _, d := range ds {
		fmt.Fprintf(w, "%-10s %-12s %-8s %s\n",
			formatID(d.ID),
			humanize.RelTime(d.CreatedAt, now, "ago", "from now"),
			humanize.Bytes(uint64(len(program.Assemble(d.Program)))),
			formatText(d.Title),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(ds), plural(len(ds), "draft"))
	return len(ds)
}

// FormatJSONL writes each item as a single line of JSON.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as indented JSON.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

func formatID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

func formatAge(ms int64, now time.Time) string {
	if ms == 0 {
		return "-"
	}
	return humanize.RelTime(time.UnixMilli(ms), now, "ago", "from now")
}

// formatText shows the first non-empty line, truncated to 40 characters.
func formatText(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 40 {
			return line[:37] + "..."
		}
		return line
	}
	return "-"
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
