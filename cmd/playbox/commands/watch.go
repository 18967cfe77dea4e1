package commands

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/config"
	"github.com/dyluth/playbox/internal/controller"
	"github.com/dyluth/playbox/internal/drafts"
	"github.com/dyluth/playbox/internal/persist"
	"github.com/dyluth/playbox/internal/printer"
	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/sandbox"
	"github.com/dyluth/playbox/internal/screen"
	"github.com/dyluth/playbox/internal/store"
	"github.com/dyluth/playbox/pkg/gist"
)

var (
	watchGist     string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Live-run a game directory, re-evaluating on every edit",
	Long: `Live-run a game directory, re-evaluating on every edit.

playbox boots the sandbox, then polls DIR (default: current directory) and sends
every change through the linter and into the sandbox, printing the log, errors and
token count after each reply.

Commands read from stdin while watching:
  ctrl+s             save the game as a gist (needs PLAYBOX_TOKEN)
  ctrl+[ / ctrl+]    previous / next screen
  screen NAME        jump to a screen (home, run, code, sprite, map, ...)
  resize WxH         change the viewport
  quit               stop watching

Examples:
  # Watch the current directory
  playbox watch

  # Start from a saved gist; its files are written into ./pong first
  playbox watch ./pong --gist=01HX...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchGist, "gist", "", "Load this gist into DIR before watching")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 500*time.Millisecond, "How often DIR is checked for changes")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New()

	var gists *gist.Client
	if watchGist != "" || cfg.Token != "" {
		if gists, err = connectWatchGists(ctx, cfg, watchGist != ""); err != nil {
			return err
		}
		if gists != nil {
			defer gists.Close()
		}
	}

	var saver controller.Saver
	if cfg.Token != "" && gists != nil {
		if tok, err := signIn(ctx, cfg, st); err != nil {
			printer.Warning("Continuing without sign-in; ctrl+s will not save\n")
		} else {
			printer.Success("Signed in as %s\n", tok.User.Login)
			saver = persist.NewSaver(gists, st)
		}
	}

	if watchGist != "" {
		// Marked before the controller starts so the boot screen waits for it.
		st.FetchGistRequest()
	} else {
		p, err := loadProgram(dir)
		if err != nil {
			return err
		}
		st.UpdateProgram(p)
	}

	var recorder controller.DraftRecorder
	ds, err := openDrafts(cfg)
	if err != nil {
		printer.Warning("Draft history disabled: %v\n", err)
	} else if ds != nil {
		defer ds.Close()
		recorder = ds
	}

	host, err := startSandbox(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start sandbox: %w", err)
	}
	defer host.close()

	ctrl := newController(cfg, st, host, saver, recorder)
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	if err := host.waitLoaded(ctx); err != nil {
		stop()
		<-done
		return err
	}
	ctrl.SurfaceLoaded()

	if watchGist != "" {
		go func() { _ = loadWatchGist(ctx, gists, st, watchGist, dir) }()
	}

	go pollDir(ctx, dir, watchInterval, st)
	go readCommands(ctx, os.Stdin, st, ctrl, host.keys, stop)

	printer.Step("Watching %s (ctrl+c or 'quit' to stop)\n", dir)
	render(ctx, os.Stdout, st, ctrl)

	return <-done
}

// loadWatchGist fetches the gist into st and writes it to dir so polling picks it up.
// Failures are logged; the store has already been told the fetch ended.
func loadWatchGist(ctx context.Context, gists *gist.Client, st *store.Store, id, dir string) error {
	g, err := fetchGist(ctx, gists, st, id)
	if err != nil {
		log.Printf("[ERROR] [Watch] Failed to load gist %s: %v", id, err)
		return err
	}
	if err := program.WriteDir(dir, st.State().Program); err != nil {
		log.Printf("[ERROR] [Watch] Failed to write gist %s to %s: %v", g.ID, dir, err)
		return err
	}
	log.Printf("[INFO] [Watch] Loaded gist %s into %s", g.ID, dir)
	return nil
}

// connectWatchGists opens the gist store for watch. The store is only required when a
// gist is being loaded; otherwise an unreachable store leaves saving disabled.
func connectWatchGists(ctx context.Context, cfg *config.PlayboxConfig, required bool) (*gist.Client, error) {
	gists, err := connectGists(ctx, cfg)
	if err == nil {
		return gists, nil
	}
	if required {
		return nil, err
	}
	log.Printf("[WARN] [Watch] Gist store unavailable: %v", err)
	printer.Warning("Continuing without the gist store; ctrl+s will not save\n")
	return nil, nil
}

// pollDir reloads dir whenever its files change and pushes the program into the store.
// A directory that cannot be read is skipped until it can.
func pollDir(ctx context.Context, dir string, interval time.Duration, st *store.Store) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastHash := ""
	if files, err := program.Files(st.State().Program); err == nil {
		lastHash = drafts.Hash(files)
	}
	lastErr := ""

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if st.State().Gist.Fetching {
			continue
		}

		p, err := program.LoadDir(dir)
		if err != nil {
			if err.Error() != lastErr {
				log.Printf("[WARN] [Watch] %v", err)
				lastErr = err.Error()
			}
			continue
		}
		lastErr = ""

		files, err := program.Files(p)
		if err != nil {
			continue
		}
		if hash := drafts.Hash(files); hash != lastHash {
			lastHash = hash
			st.UpdateProgram(p)
		}
	}
}

// keyChords maps typed commands to the key chords the sandbox understands.
var keyChords = map[string]string{
	"ctrl+s": "ctrl+s",
	"save":   "ctrl+s",
	"ctrl+[": "ctrl+[",
	"prev":   "ctrl+[",
	"ctrl+]": "ctrl+]",
	"next":   "ctrl+]",
}

// readCommands handles the interactive commands typed while watching.
func readCommands(ctx context.Context, r io.Reader, st *store.Store, ctrl *controller.Controller, keys keyPresser, quit func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := runCommand(strings.TrimSpace(scanner.Text()), st, ctrl, keys); err != nil {
			if errors.Is(err, errQuit) {
				quit()
				return
			}
			printer.Warning("%v\n", err)
		}
	}
}

var errQuit = errors.New("quit")

func runCommand(line string, st *store.Store, ctrl *controller.Controller, keys keyPresser) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	if chord, ok := keyChords[fields[0]]; ok {
		return keys.Press(chord)
	}

	switch fields[0] {
	case "quit", "exit":
		return errQuit
	case "screen":
		if len(fields) != 2 {
			return fmt.Errorf("usage: screen NAME")
		}
		sc, err := screen.Parse(fields[1])
		if err != nil {
			return err
		}
		st.SetScreen(sc)
		return nil
	case "resize":
		if len(fields) != 2 {
			return fmt.Errorf("usage: resize WxH")
		}
		v, err := parseViewport(fields[1])
		if err != nil {
			return err
		}
		ctrl.Resize(v)
		return nil
	}
	return fmt.Errorf("unknown command %q", fields[0])
}

func parseViewport(s string) (sandbox.Viewport, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return sandbox.Viewport{}, fmt.Errorf("invalid size %q (use WxH, e.g. 640x480)", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width < 0 {
		return sandbox.Viewport{}, fmt.Errorf("invalid width in %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height < 0 {
		return sandbox.Viewport{}, fmt.Errorf("invalid height in %q", s)
	}
	return sandbox.Viewport{Width: width, Height: height}, nil
}

// render prints the view whenever it or the screen changes, skipping repeats.
func render(ctx context.Context, w io.Writer, st *store.Store, ctrl *controller.Controller) {
	changes, unsubscribe := st.Subscribe()
	defer unsubscribe()

	var last string
	lastScreen := st.State().Screen
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if sc := st.State().Screen; sc != lastScreen {
				lastScreen = sc
				printer.Step("Screen: %s\n", sc)
			}
			continue
		case <-ctrl.Updates():
		}

		var buf bytes.Buffer
		printer.View(&buf, ctrl.View())
		if out := buf.String(); out != last {
			last = out
			fmt.Fprint(w, out)
		}
	}
}
