package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/sandbox"
)

var sandboxBudgetMs int

// sandboxCmd is the child side of sandbox.mode=process. It is started by other
// commands, not by users.
var sandboxCmd = &cobra.Command{
	Use:    "sandbox",
	Short:  "Run the sandbox runtime over stdin/stdout",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := sandbox.NewRuntime()
		rt.SetBudget(time.Duration(sandboxBudgetMs) * time.Millisecond)
		return sandbox.Serve(cmd.Context(), rt, os.Stdin, os.Stdout)
	},
}

func init() {
	sandboxCmd.Flags().IntVar(&sandboxBudgetMs, "budget-ms", int(sandbox.DefaultBudget/time.Millisecond), "Execution budget per evaluation in milliseconds")
	rootCmd.AddCommand(sandboxCmd)
}
