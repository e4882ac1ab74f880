// Package google_tools provides MCP tools for authorizing Google accounts.
//
// The tools let an assistant add an account without leaving the chat:
//  1. Call get-auth-url with the new account name
//  2. The user visits the URL and approves calendar access
//  3. Call save-auth-code with the code Google shows
//
// Saving a code stores the account's token next to the others and clears the
// calendar registry, so the new account's calendars appear on the next call.
package google_tools
