package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

func newCalendarsCmd() *cobra.Command {
	var (
		cfg        ServeConfig
		accounts   string
		outputJSON bool
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "calendars",
		Short: "Print the merged calendar view of all configured accounts",
		Long: `List every calendar visible to the configured accounts. Calendars shared
between accounts are shown once, with the account that reads and writes them
first and the other accounts after it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadServeEnvVars(cmd, &cfg, &accounts); err != nil {
				return err
			}
			cfg.Registry.Store = registryStoreMemory
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := slog.New(logging.NewHandler(os.Stderr, logging.FormatText, debug))
			return runCalendars(cmd.Context(), cmd.OutOrStdout(), cfg, logger, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the view as JSON")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	addAccountFlags(cmd, &cfg, &accounts)
	cfg.Transport = transportStdio

	return cmd
}

func runCalendars(ctx context.Context, out io.Writer, cfg ServeConfig, logger *slog.Logger, outputJSON bool) error {
	sc, closeStore, err := newServerContext(ctx, cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer closeStore()
	defer func() { _ = sc.Shutdown() }()

	accounts, err := sc.Accounts()
	if err != nil {
		return err
	}
	calendars, err := sc.Registry().GetUnifiedCalendars(ctx, accounts)
	if err != nil {
		return fmt.Errorf("failed to build calendar view: %w", err)
	}
	return writeCalendars(out, calendars, outputJSON)
}

func writeCalendars(out io.Writer, calendars []registry.UnifiedCalendar, outputJSON bool) error {
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(calendars)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALENDAR\tNAME\tACCOUNT\tROLE\tALSO VISIBLE TO")
	for _, cal := range calendars {
		preferred := cal.Preferred()
		others := make([]string, 0, len(cal.AccessEntries))
		for _, e := range cal.AccessEntries {
			if e.AccountID == cal.PreferredAccountID {
				continue
			}
			others = append(others, fmt.Sprintf("%s (%s)", e.AccountID, e.AccessRole))
		}
		also := strings.Join(others, ", ")
		if also == "" {
			also = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", cal.CalendarID, cal.DisplayName, cal.PreferredAccountID, preferred.AccessRole, also)
	}
	return tw.Flush()
}
