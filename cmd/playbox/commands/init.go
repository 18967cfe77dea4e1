package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/printer"
	"github.com/dyluth/playbox/internal/scaffold"
)

var (
	forceInit    bool
	initTitle    string
	initInstance string
)

var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Create a new game directory",
	Long: `Create a new game directory with a starter program and configuration.

Creates:
  • code.js     - a starter game using init/update/draw
  • playbox.yml - configuration for the sandbox, gist store and sign-in

Use --force to overwrite existing files.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing code.js and playbox.yml")
	initCmd.Flags().StringVar(&initTitle, "title", "", "Game title (default: directory name)")
	initCmd.Flags().StringVar(&initInstance, "instance", "", "Gist store instance name (default: default)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	created, err := scaffold.Initialize(scaffold.Options{
		Dir:      dir,
		Title:    initTitle,
		Instance: initInstance,
		Force:    forceInit,
	})
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	scaffold.PrintSuccess(os.Stdout, dir, created)
	if forceInit {
		printer.Warning("Existing files in %s were overwritten\n", dir)
	}
	return nil
}
