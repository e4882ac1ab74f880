package common

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

// AccountDescription is the shared description of the account argument.
const AccountDescription = "Account ID to use. Omit (or pass 'default') to let the server pick the account with the best access to the calendar."

// WithAccount adds the optional account argument to a tool definition.
func WithAccount() mcp.ToolOption {
	return mcp.WithString("account", mcp.Description(AccountDescription))
}

// GetAccountFromArgs extracts the account argument, defaulting to
// registry.DefaultAccount.
func GetAccountFromArgs(args map[string]interface{}) string {
	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		return accountVal
	}
	return registry.DefaultAccount
}

// DescribeResolveError turns an account-resolution error into a message
// telling the caller what to do next.
func DescribeResolveError(calendarID string, err error) string {
	switch {
	case errors.Is(err, registry.ErrInvalidIdentifier):
		return err.Error()
	case errors.Is(err, registry.ErrAccountNotFound):
		return fmt.Sprintf("%v. Use manage-accounts to list the configured accounts.", err)
	case errors.Is(err, registry.ErrInsufficientPermission):
		return fmt.Sprintf("%v. No configured account can write to %q; pass an account with owner or writer access.", err, calendarID)
	case errors.Is(err, registry.ErrCalendarNotFound):
		return fmt.Sprintf("%v. Use list-calendars to see the calendars every account can access.", err)
	default:
		return fmt.Sprintf("Failed to select an account for %s: %v", calendarID, err)
	}
}
