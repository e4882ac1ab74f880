package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the google-calendar-mcp application
var rootCmd = &cobra.Command{
	Use:   "google-calendar-mcp",
	Short: "MCP server for Google Calendar across multiple accounts",
	Long: `google-calendar-mcp exposes the Google Calendars of one or more Google
accounts to AI assistants over the Model Context Protocol.

Calendars shared between accounts are merged into one view, reads and writes
are routed to the account with the best access, and batch creation runs
through a pipeline that stops early on repeated identical failures.

Run "auth" once per account, then "serve".`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "google-calendar-mcp version %s\n" .Version}}`)

	// MCP clients usually launch the binary without arguments.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCalendarsCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
