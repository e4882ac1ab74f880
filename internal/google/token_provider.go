package google

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenProvider supplies OAuth tokens for Google APIs by account.
type TokenProvider interface {
	// GetTokenForAccount retrieves an OAuth token for the specified account
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount checks if a token exists for the specified account
	HasTokenForAccount(account string) bool

	// ListAccounts returns every account a token is available for
	ListAccounts() ([]string, error)
}

// FileTokenProvider serves tokens from a FileTokenStore.
type FileTokenProvider struct {
	store *FileTokenStore
}

// NewFileTokenProvider creates a provider over store. A nil store uses the
// default cache directory.
func NewFileTokenProvider(store *FileTokenStore) *FileTokenProvider {
	if store == nil {
		store = NewFileTokenStore("")
	}
	return &FileTokenProvider{store: store}
}

// GetTokenForAccount reads the token file for account.
func (p *FileTokenProvider) GetTokenForAccount(_ context.Context, account string) (*oauth2.Token, error) {
	return p.store.Load(account)
}

// HasTokenForAccount checks if a token file exists for account.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return p.store.Has(account)
}

// ListAccounts lists the accounts with token files.
func (p *FileTokenProvider) ListAccounts() ([]string, error) {
	return p.store.ListAccounts()
}

// Store returns the underlying token store.
func (p *FileTokenProvider) Store() *FileTokenStore {
	return p.store
}
