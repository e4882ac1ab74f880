package google_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/oauth2"

	"github.com/nspady/google-calendar-mcp-sub000/internal/google"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/common"
)

// ConfigFunc returns the OAuth client used for the consent flow.
type ConfigFunc func() (*oauth2.Config, error)

// RegisterGoogleTools registers the account authorization tools.
func RegisterGoogleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	return registerGoogleTools(s, sc, google.GetOAuthConfig)
}

func registerGoogleTools(s *mcpserver.MCPServer, sc *server.ServerContext, oauthConfig ConfigFunc) error {
	getAuthURLTool := mcp.NewTool("get-auth-url",
		mcp.WithDescription("Get the URL that authorizes Google Calendar access for a new or expired account"),
		mcp.WithString("account",
			mcp.Description("Account name to authorize (e.g. 'work', 'personal'). Default: 'default'."),
		),
	)

	s.AddTool(getAuthURLTool, common.InstrumentedToolHandler("get-auth-url", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetAuthURL(ctx, request, oauthConfig)
		}))

	saveAuthCodeTool := mcp.NewTool("save-auth-code",
		mcp.WithDescription("Complete authorization of an account with the code Google displayed"),
		mcp.WithString("account",
			mcp.Description("Account name used with get-auth-url. Default: 'default'."),
		),
		mcp.WithString("authCode",
			mcp.Required(),
			mcp.Description("The authorization code from Google OAuth"),
		),
	)

	s.AddTool(saveAuthCodeTool, common.InstrumentedToolHandler("save-auth-code", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSaveAuthCode(ctx, request, sc, oauthConfig)
		}))

	return nil
}

func handleGetAuthURL(_ context.Context, request mcp.CallToolRequest, oauthConfig ConfigFunc) (*mcp.CallToolResult, error) {
	account := common.GetAccountFromArgs(request.GetArguments())
	if err := google.ValidateAccountName(account); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	conf, err := oauthConfig()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf(`To authorize Google Calendar access for account "%s":

1. Visit this URL in your browser:
   %s

2. Sign in with the Google account
3. Grant calendar access
4. Copy the authorization code

5. Call the save-auth-code tool with the code and account name to complete authorization`, account, google.GetAuthURL(conf, account))

	return mcp.NewToolResultText(result), nil
}

func handleSaveAuthCode(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, oauthConfig ConfigFunc) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(args)

	authCode, err := common.RequiredString(args, "authCode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	saver, ok := sc.TokenSaver()
	if !ok {
		return mcp.NewToolResultError("this server cannot store new tokens; run the auth command instead"), nil
	}
	conf, err := oauthConfig()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := google.ExchangeAndSave(ctx, conf, saver, account, authCode); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save authorization code for account %s: %v", account, err)), nil
	}
	if err := sc.RefreshAccounts(ctx); err != nil {
		return common.ErrorResult("refresh accounts", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Authorization successful for account '%s'. Its calendars are now available.", account)), nil
}
