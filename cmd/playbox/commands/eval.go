package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/controller"
	"github.com/dyluth/playbox/internal/lint"
	"github.com/dyluth/playbox/internal/printer"
	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/screen"
	"github.com/dyluth/playbox/internal/store"
	"github.com/dyluth/playbox/internal/tokens"
)

var (
	evalScreen  string
	evalTimeout time.Duration
)

var evalCmd = &cobra.Command{
	Use:   "eval [DIR]",
	Short: "Check a game and run it once in the sandbox",
	Long: `Check a game and run it once in the sandbox.

The program in DIR (default: current directory) is linted first. If the linter
finds nothing, the program is sent to the sandbox exactly as the editor would send
it from the chosen screen, and the reply is printed: the logged value, any runtime
errors and the token count.

Exits non-zero when the program has lint or runtime errors.

Examples:
  # Run the game in the current directory
  playbox eval

  # Evaluate without running the game loop, with the framebuffer renderer
  playbox eval ./pong --screen=code --renderer=framebuffer`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalScreen, "screen", screen.Run.String(), "Screen to evaluate from (run executes the game loop)")
	evalCmd.Flags().DurationVar(&evalTimeout, "timeout", 10*time.Second, "How long to wait for the sandbox to reply")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	sc, err := screen.Parse(evalScreen)
	if err != nil || sc == screen.Boot {
		return printer.Error(
			fmt.Sprintf("invalid screen: %s", evalScreen),
			"eval needs one of the editor screens; boot always shows the boot program.",
			[]string{"Use --screen=run to run the game, or --screen=code to evaluate it without running"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := loadProgram(dir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), evalTimeout)
	defer cancel()

	lintErrors, err := lint.New().Validate(ctx, program.Assemble(p))
	if err != nil {
		return fmt.Errorf("lint failed: %w", err)
	}
	if len(lintErrors) > 0 {
		printer.View(os.Stdout, controller.View{
			Title:  program.Title(p),
			Errors: lintErrors,
			Tokens: tokens.NewEstimator(nil, 0).Estimate(p),
		})
		return printer.Error(
			"program has lint errors",
			fmt.Sprintf("%d problem(s) must be fixed before the game can run.", len(lintErrors)),
			nil,
		)
	}

	host, err := startSandbox(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start sandbox: %w", err)
	}
	defer host.close()

	st := store.New()
	st.FinishBoot()
	st.UpdateProgram(p)
	st.SetScreen(sc)

	view, err := evaluateOnce(ctx, newController(cfg, st, host, nil, nil), host)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return printer.Error(
				"sandbox did not reply",
				fmt.Sprintf("No reply within %s.", evalTimeout),
				[]string{"Raise --timeout", "Check that the game does not block forever"},
			)
		}
		return err
	}

	printer.View(os.Stdout, view)
	if len(view.Errors) > 0 {
		return printer.Error("game raised an error", view.Errors[0].Message, nil)
	}
	return nil
}

// evaluateOnce runs ctrl until the sandbox has replied with its error list, which is the
// last thing the runtime reports for an evaluation.
func evaluateOnce(ctx context.Context, ctrl *controller.Controller, host *sandboxHost) (controller.View, error) {
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(runCtx) }()
	defer func() {
		stop()
		<-done
	}()

	if err := host.waitLoaded(ctx); err != nil {
		return controller.View{}, err
	}
	ctrl.SurfaceLoaded()

	for {
		select {
		case <-ctx.Done():
			return controller.View{}, ctx.Err()
		case <-ctrl.Updates():
			if v := ctrl.View(); v.Errors != nil {
				return v, nil
			}
		}
	}
}
