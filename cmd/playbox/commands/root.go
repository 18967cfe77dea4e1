package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/config"
	"github.com/dyluth/playbox/internal/printer"
)

var (
	version string
	commit  string
	date    string

	configPath   string
	rendererFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playbox",
	Short: "playbox - a live playground for small JavaScript games",
	Long: `playbox edits, checks and runs small JavaScript games in an isolated runtime,
and saves them as gists.

A game lives in a directory: code.js (plus code-1.js, code-2.js, ... for
multi-part programs) and optional sprites.json, map.json, phrases.json, chains.json,
songs.json and sound.json.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to playbox.yml")
	rootCmd.PersistentFlags().StringVar(&rendererFlag, "renderer", "", "Sandbox renderer: framebuffer, or empty for draw lists (overrides sandbox.renderer)")
}

// loadConfig reads the configuration, falling back to defaults when the file is absent.
func loadConfig() (*config.PlayboxConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Fix the file, or remove it to use the defaults"},
		)
	}
	return cfg, nil
}
