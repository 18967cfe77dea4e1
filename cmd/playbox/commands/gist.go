package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/listing"
	"github.com/dyluth/playbox/internal/printer"
	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/store"
	"github.com/dyluth/playbox/internal/timespec"
)

var (
	gistOut    string
	gistJSON   bool
	gistOwner  string
	gistOutput string
	gistSince  string
	gistUntil  string
	gistLimit  int
)

var gistCmd = &cobra.Command{
	Use:   "gist",
	Short: "Fetch, list and follow saved games",
}

var gistGetCmd = &cobra.Command{
	Use:   "get GIST_ID",
	Short: "Fetch a gist into a game directory",
	Long: `Fetch a gist into a game directory.

Examples:
  # Write the game files into ./pong
  playbox gist get 01HX... --out ./pong

  # Print the gist as JSON instead
  playbox gist get 01HX... --json`,
	Args: cobra.ExactArgs(1),
	RunE: runGistGet,
}

var gistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved gists",
	Long: `List saved gists, newest first.

Lists the signed-in user's gists unless --owner is given.

Time Filters:
  --since  - Show gists created after this time (duration or RFC3339)
  --until  - Show gists created before this time

Examples:
  playbox gist list
  playbox gist list --owner=alice --since=24h --output=jsonl`,
	Args: cobra.NoArgs,
	RunE: runGistList,
}

var gistEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print gist events as they happen",
	Args:  cobra.NoArgs,
	RunE:  runGistEvents,
}

func init() {
	gistGetCmd.Flags().StringVarP(&gistOut, "out", "o", ".", "Directory to write the game files into")
	gistGetCmd.Flags().BoolVar(&gistJSON, "json", false, "Print the gist as JSON instead of writing files")

	gistListCmd.Flags().StringVar(&gistOwner, "owner", "", "List this user's gists (default: signed-in user)")
	gistListCmd.Flags().StringVarP(&gistOutput, "output", "o", "default", "Output format: default or jsonl")
	gistListCmd.Flags().StringVar(&gistSince, "since", "", "Show gists created after time (duration or RFC3339)")
	gistListCmd.Flags().StringVar(&gistUntil, "until", "", "Show gists created before time (duration or RFC3339)")
	gistListCmd.Flags().IntVar(&gistLimit, "limit", 0, "Maximum number of gists to read (0 for all)")

	gistCmd.AddCommand(gistGetCmd, gistListCmd, gistEventsCmd)
	rootCmd.AddCommand(gistCmd)
}

func runGistGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gists, err := connectGists(ctx, cfg)
	if err != nil {
		return err
	}
	defer gists.Close()

	st := store.New()
	g, err := fetchGist(ctx, gists, st, args[0])
	if err != nil {
		return err
	}

	if gistJSON {
		return listing.FormatSingleJSON(os.Stdout, g)
	}

	if err := program.WriteDir(gistOut, st.State().Program); err != nil {
		return fmt.Errorf("failed to write game files: %w", err)
	}
	printer.Success("Wrote gist %s (%s) to %s\n", g.ID, g.Description, gistOut)
	return nil
}

func runGistList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := listing.ParseFormat(gistOutput)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Use --output=default or --output=jsonl"})
	}
	window, err := timespec.ParseWindow(gistSince, gistUntil, time.Now())
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), []string{"Use a duration like '2h' or an RFC3339 timestamp"})
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	owner := gistOwner
	if owner == "" {
		tok, err := signIn(ctx, cfg, store.New())
		if err != nil {
			return err
		}
		owner = tok.User.Login
	}

	gists, err := connectGists(ctx, cfg)
	if err != nil {
		return err
	}
	defer gists.Close()

	list, err := gists.ListByOwner(ctx, owner, gistLimit)
	if err != nil {
		return fmt.Errorf("failed to list gists: %w", err)
	}
	list = listing.FilterGists(list, window)

	if format == listing.OutputFormatJSONL {
		return listing.FormatJSONL(os.Stdout, list)
	}
	listing.FormatGists(os.Stdout, list, owner, time.Now())
	return nil
}

func runGistEvents(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gists, err := connectGists(ctx, cfg)
	if err != nil {
		return err
	}
	defer gists.Close()

	sub, err := gists.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Step("Following gist events for instance '%s'\n", cfg.Instance)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("%v\n", err)
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printer.Printf("%-8s %s  %s  %s\n", ev.Type, ev.Gist.ID, ev.Gist.Owner, ev.Gist.Description)
		}
	}
}
