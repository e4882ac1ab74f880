// Package google holds the OAuth plumbing shared by the calendar client:
// the OAuth2 configuration, per-account token files and the TokenProvider
// abstraction.
//
// Tokens live in the user cache directory, one file per account:
//
//	$XDG_CACHE_HOME/google-calendar-mcp/google-<account>.token
//
// Each file holds the JSON encoding of an oauth2.Token. The set of token
// files is the account directory; ListAccounts enumerates it.
package google
