package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nspady/google-calendar-mcp-sub000/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		account  string
		code     string
		tokenDir string
		envFile  string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize a Google account",
		Long: `Authorize access to the Google Calendars of one account and store the token.

Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET of an OAuth client of type
"Desktop app". Open the printed URL, approve access, and paste the code shown
by Google (or pass it with --code).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			if err := google.ValidateAccountName(account); err != nil {
				return err
			}
			conf, err := google.GetOAuthConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if code == "" {
				fmt.Fprintf(out, "Open this URL to authorize account %q:\n\n%s\n\nEnter the authorization code: ", account, google.GetAuthURL(conf, account))
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if !scanner.Scan() {
					if err := scanner.Err(); err != nil {
						return fmt.Errorf("failed to read authorization code: %w", err)
					}
					return fmt.Errorf("no authorization code entered")
				}
				code = strings.TrimSpace(scanner.Text())
			}

			store := google.NewFileTokenStore(tokenDir)
			if err := google.ExchangeAndSave(cmd.Context(), conf, store, account, code); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token for account %q saved to %s\n", account, store.TokenPath(account))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Account ID to authorize (e.g. work, personal)")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code (skips the prompt)")
	cmd.Flags().StringVar(&tokenDir, "token-dir", "", "Directory holding per-account token files (default: user cache dir)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file first")

	return cmd
}
