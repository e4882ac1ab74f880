package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	// No accounts are needed to describe the tools.
	serverContext, err := server.NewServerContext(context.Background(),
		server.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := newMCPServer()

	// Register write tools too so the reference is complete.
	if err := registerAllTools(mcpSrv, serverContext, false); err != nil {
		return err
	}

	var tools []mcp.Tool
	for _, st := range mcpSrv.ListTools() {
		tools = append(tools, st.Tool)
	}
	markdown := generateToolsMarkdown(tools)

	if outputFile == "" {
		fmt.Print(markdown)
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputFile, err)
	}
	fmt.Fprintf(os.Stderr, "Tool reference written to %s\n", outputFile)
	return nil
}

// writeTools are the tools left out when serving with --read-only.
var writeTools = []string{"create-event", "create-events", "update-event", "delete-event"}

func generateToolsMarkdown(tools []mcp.Tool) string {
	byCategory := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := toolCategory(tool.Name)
		byCategory[category] = append(byCategory[category], tool)
	}
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var sb strings.Builder
	sb.WriteString("# google-calendar-mcp tools\n\n")
	sb.WriteString("Generated from the registered tool definitions by `google-calendar-mcp generate-docs`.\n\n")

	for _, category := range categories {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, anchorFor(category))
	}

	sb.WriteString("\n## Accounts\n\n")
	sb.WriteString("Every calendar tool accepts an optional `account`. Without it, reads use the account with the highest access " +
		"to the calendar and writes use that account only if it is an owner or writer. With it, exactly that account is used " +
		"and the call fails if the account cannot perform the operation. Calendars shared between accounts appear once.\n")

	for _, category := range categories {
		list := byCategory[category]
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

		fmt.Fprintf(&sb, "\n## %s\n", category)
		for _, tool := range list {
			writeToolMarkdown(&sb, tool)
		}
	}
	return sb.String()
}

func anchorFor(category string) string {
	anchor := strings.ToLower(category)
	anchor = strings.ReplaceAll(anchor, "&", "")
	return strings.ReplaceAll(anchor, " ", "-")
}

func toolCategory(name string) string {
	switch name {
	case "list-calendars", "manage-accounts":
		return "Calendars & Accounts"
	case "get-freebusy", "check-conflicts", "get-current-time":
		return "Scheduling"
	case "get-auth-url", "save-auth-code":
		return "Account Authorization"
	}
	if strings.HasSuffix(name, "-event") || strings.HasSuffix(name, "-events") {
		return "Events"
	}
	return "Other"
}

func writeToolMarkdown(sb *strings.Builder, tool mcp.Tool) {
	fmt.Fprintf(sb, "\n### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(sb, "%s\n\n", tool.Description)
	}
	if slices.Contains(writeTools, tool.Name) {
		sb.WriteString("> Modifies calendars. Not available with `--read-only`.\n\n")
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		sb.WriteString("No arguments.\n")
		return
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("| Argument | Type | Required | Description |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, name := range names {
		prop, _ := props[name].(map[string]interface{})
		typ, _ := prop["type"].(string)
		if typ == "" {
			typ = "any"
		}
		desc, _ := prop["description"].(string)
		required := "no"
		if slices.Contains(tool.InputSchema.Required, name) {
			required = "yes"
		}
		fmt.Fprintf(sb, "| `%s` | %s | %s | %s |\n", name, typ, required, strings.ReplaceAll(desc, "|", "\\|"))
	}
}
