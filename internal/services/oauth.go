package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
)

const defaultRedirectURI = "http://127.0.0.1:3000/callback"

// OAuthClient implements [OAuthService] for a single provider.
type OAuthClient struct {
	provider models.Provider
	config   *oauth2.Config
}

var _ OAuthService = (*OAuthClient)(nil)

// NewOAuthClient creates the OAuth client for provider from the credentials map produced by the config layer.
func NewOAuthClient(provider models.Provider, credentials map[string]string) (*OAuthClient, error) {
	switch provider {
	case models.ProviderGoogle:
		return NewGoogleOAuth(credentials)
	case models.ProviderMicrosoft:
		return NewMicrosoftOAuth(credentials)
	default:
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedProvider, provider)
	}
}

// NewGoogleOAuth configures Google OAuth2 for Calendar read/write and Gmail read-only access.
func NewGoogleOAuth(credentials map[string]string) (*OAuthClient, error) {
	config, err := oauthConfig(credentials)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	config.Endpoint = google.Endpoint
	config.Scopes = []string{calendar.CalendarScope, gmail.GmailReadonlyScope}

	return &OAuthClient{provider: models.ProviderGoogle, config: config}, nil
}

// NewMicrosoftOAuth configures the Microsoft identity platform for Graph calendar access.
//
// The "tenant" credential defaults to "common".
func NewMicrosoftOAuth(credentials map[string]string) (*OAuthClient, error) {
	config, err := oauthConfig(credentials)
	if err != nil {
		return nil, fmt.Errorf("microsoft: %w", err)
	}

	tenant := credentials["tenant"]
	if tenant == "" {
		tenant = "common"
	}

	config.Endpoint = microsoft.AzureADEndpoint(tenant)
	config.Scopes = []string{"offline_access", "User.Read", "Calendars.ReadWrite"}

	return &OAuthClient{provider: models.ProviderMicrosoft, config: config}, nil
}

func oauthConfig(credentials map[string]string) (*oauth2.Config, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	return &oauth2.Config{ClientID: clientID, ClientSecret: clientSecret, RedirectURL: redirectURI}, nil
}

func (c *OAuthClient) Name() models.Provider { return c.provider }

// AuthURL returns the consent URL. Google needs the prompt forced to hand out a refresh token on re-consent.
func (c *OAuthClient) AuthURL(state string) string {
	if c.provider == models.ProviderGoogle {
		return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	}
	return c.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}
	return token, nil
}

func (c *OAuthClient) OAuthConfig() *oauth2.Config { return c.config }

func (c *OAuthClient) Scopes() []string { return c.config.Scopes }
