package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/persist"
	"github.com/dyluth/playbox/internal/printer"
	"github.com/dyluth/playbox/internal/screen"
	"github.com/dyluth/playbox/internal/store"
)

var saveGist string

var saveCmd = &cobra.Command{
	Use:   "save [DIR]",
	Short: "Save a game directory as a gist",
	Long: `Save a game directory as a gist.

Without --gist a new gist is created. With --gist the named gist is updated when
you own it; saving someone else's gist creates your own copy instead.

Requires PLAYBOX_TOKEN (see 'playbox login').

Examples:
  playbox save ./pong
  playbox save ./pong --gist=01HX...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringVar(&saveGist, "gist", "", "Gist this program was loaded from")
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := loadProgram(dir)
	if err != nil {
		return err
	}

	st := store.New()
	tok, err := signIn(ctx, cfg, st)
	if err != nil {
		return err
	}

	gists, err := connectGists(ctx, cfg)
	if err != nil {
		return err
	}
	defer gists.Close()

	if saveGist != "" {
		if _, err := fetchGist(ctx, gists, st, saveGist); err != nil {
			return err
		}
	}
	st.UpdateProgram(p)
	st.FinishBoot()
	st.SetScreen(screen.Code)

	decision := persist.Decide(st.State().Gist.Ref(), tok.User.Login)
	saved, err := persist.NewSaver(gists, st).Save(ctx, st.State())
	if err != nil {
		if errors.Is(err, persist.ErrNotRecordable) {
			return printer.ErrorWithContext(
				"nothing to save",
				"The program is blank.",
				map[string]string{"Directory": dir},
				[]string{"Write some code in code.js first"},
			)
		}
		return fmt.Errorf("save failed: %w", err)
	}

	printer.Success("%sd gist %s (%s)\n", decision, saved.ID, saved.Description)
	return nil
}
