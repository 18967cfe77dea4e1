package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/drafts"
	"github.com/dyluth/playbox/internal/listing"
	"github.com/dyluth/playbox/internal/printer"
	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/resolver"
	"github.com/dyluth/playbox/internal/timespec"
)

var (
	draftsOutput string
	draftsSince  string
	draftsUntil  string
	draftsLimit  int
	draftsOut    string
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Browse and restore the local draft history",
	Long: `Browse and restore the local draft history.

Every program watch sends to the sandbox is recorded in drafts.path (default
.playbox/drafts.db) unless drafts.enabled is false.

Examples:
  playbox drafts --since=2h
  playbox drafts restore latest --out ./pong`,
	Args: cobra.NoArgs,
	RunE: runDraftsList,
}

var draftsRestoreCmd = &cobra.Command{
	Use:   "restore DRAFT_ID|latest",
	Short: "Write a draft back into a game directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftsRestore,
}

func init() {
	draftsCmd.Flags().StringVarP(&draftsOutput, "output", "o", "default", "Output format: default or jsonl")
	draftsCmd.Flags().StringVar(&draftsSince, "since", "", "Show drafts saved after time (duration or RFC3339)")
	draftsCmd.Flags().StringVar(&draftsUntil, "until", "", "Show drafts saved before time (duration or RFC3339)")
	draftsCmd.Flags().IntVar(&draftsLimit, "limit", 20, "Maximum number of drafts to read (0 for all)")

	draftsRestoreCmd.Flags().StringVar(&draftsOut, "out", ".", "Directory to write the game files into")

	draftsCmd.AddCommand(draftsRestoreCmd)
	rootCmd.AddCommand(draftsCmd)
}

func openDraftHistory() (*drafts.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ds, err := openDrafts(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft history: %w", err)
	}
	if ds == nil {
		return nil, printer.Error(
			"draft history is disabled",
			"drafts.enabled is false in playbox.yml.",
			nil,
		)
	}
	return ds, nil
}

func runDraftsList(cmd *cobra.Command, args []string) error {
	format, err := listing.ParseFormat(draftsOutput)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Use --output=default or --output=jsonl"})
	}
	window, err := timespec.ParseWindow(draftsSince, draftsUntil, time.Now())
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), []string{"Use a duration like '2h' or an RFC3339 timestamp"})
	}

	ds, err := openDraftHistory()
	if err != nil {
		return err
	}
	defer ds.Close()

	list, err := ds.List(cmd.Context(), draftsLimit)
	if err != nil {
		return err
	}
	list = listing.FilterDrafts(list, window)

	if format == listing.OutputFormatJSONL {
		return listing.FormatJSONL(os.Stdout, list)
	}
	listing.FormatDrafts(os.Stdout, list, time.Now())
	return nil
}

func runDraftsRestore(cmd *cobra.Command, args []string) error {
	ds, err := openDraftHistory()
	if err != nil {
		return err
	}
	defer ds.Close()

	d, err := findDraft(cmd, ds, args[0])
	if err != nil {
		return err
	}

	if err := program.WriteDir(draftsOut, d.Program); err != nil {
		return fmt.Errorf("failed to write game files: %w", err)
	}
	printer.Success("Restored draft %s to %s\n", d.ID, draftsOut)
	return nil
}

// findDraft resolves "latest" or an id prefix to a single draft.
func findDraft(cmd *cobra.Command, ds *drafts.Store, ref string) (*drafts.Draft, error) {
	if ref == "latest" {
		d, err := ds.Latest(cmd.Context())
		if errors.Is(err, drafts.ErrNoDrafts) {
			return nil, printer.Error("no drafts yet", "Drafts are recorded while 'playbox watch' runs.", nil)
		}
		return d, err
	}

	id, err := resolver.Resolve(cmd.Context(), ds, "draft", ref)
	if err != nil {
		return nil, resolveError("draft", ref, err)
	}
	return ds.Get(cmd.Context(), id)
}
