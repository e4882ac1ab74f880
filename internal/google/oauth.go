package google

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// EnvClientID and EnvClientSecret name the OAuth client credentials.
	EnvClientID     = "GOOGLE_CLIENT_ID"
	EnvClientSecret = "GOOGLE_CLIENT_SECRET"

	oobRedirectURL = "urn:ietf:wg:oauth:2.0:oob"
)

// ErrMissingClientCredentials is returned when the OAuth client is not configured.
var ErrMissingClientCredentials = errors.New("google OAuth client credentials not configured")

// GetOAuthConfig returns the OAuth2 configuration built from the
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables.
func GetOAuthConfig() (*oauth2.Config, error) {
	clientID := os.Getenv(EnvClientID)
	clientSecret := os.Getenv(EnvClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: set %s and %s", ErrMissingClientCredentials, EnvClientID, EnvClientSecret)
	}
	return NewOAuthConfig(clientID, clientSecret, DefaultOAuthScopes), nil
}

// NewOAuthConfig builds an OAuth2 config for the installed-app flow.
func NewOAuthConfig(clientID, clientSecret string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  oobRedirectURL,
		Scopes:       scopes,
	}
}

// GetAuthURL returns the consent URL for account. The account name is
// carried in the state parameter.
func GetAuthURL(conf *oauth2.Config, account string) string {
	return conf.AuthCodeURL(account, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// TokenSaver persists a token for an account.
type TokenSaver interface {
	Save(account string, token *oauth2.Token) error
}

// ExchangeAndSave trades an authorization code for a token and stores it.
func ExchangeAndSave(ctx context.Context, conf *oauth2.Config, store TokenSaver, account, authCode string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	token, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return store.Save(account, token)
}
