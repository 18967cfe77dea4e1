package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/playbox/internal/auth"
	"github.com/dyluth/playbox/internal/config"
	"github.com/dyluth/playbox/internal/printer"
)

var loginCode string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and print a token for saving gists",
	Long: `Sign in and print a token for saving gists.

Open the printed link, approve access, then paste the code you are redirected with
(or pass it with --code). The resulting token is printed; export it as
PLAYBOX_TOKEN for save, watch and gist list.

Requires auth.client_id and auth.authenticator_url in playbox.yml.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginCode, "code", "", "Authorization code (prompted for when omitted)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.ClientID == "" || cfg.Auth.AuthenticatorURL == "" {
		return printer.ErrorWithContext(
			"sign-in is not configured",
			"Both auth.client_id and auth.authenticator_url must be set.",
			map[string]string{"Config": configPath},
			[]string{"Add an auth section to playbox.yml"},
		)
	}

	code := loginCode
	if code == "" {
		link, state := auth.AuthorizeURL(cfg.Auth.AuthorizeURL, cfg.Auth.ClientID)
		printer.Info("Open this link to sign in:\n\n  %s\n\n", link)
		printer.Info("Check that the page you return to carries state=%s\n", state)
		printer.Info("Code: ")

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read code: %w", err)
		}
		code = strings.TrimSpace(line)
	}
	if code == "" {
		return printer.Error("no code given", "Sign-in needs the code from the redirect.", nil)
	}

	tok, err := auth.NewClient(cfg.Auth.AuthenticatorURL, cfg.Auth.APIURL).SignIn(cmd.Context(), code)
	if err != nil {
		return printer.ErrorWithContext(
			"sign-in failed",
			err.Error(),
			map[string]string{"Authenticator": cfg.Auth.AuthenticatorURL},
			[]string{"Codes are single-use; start again with 'playbox login'"},
		)
	}

	printer.Success("Signed in as %s\n", tok.User.Login)
	fmt.Fprintf(os.Stdout, "\nexport %s=%s\n", config.EnvToken, tok.Value)
	return nil
}
