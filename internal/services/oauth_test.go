package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

func TestOAuthClient(t *testing.T) {
	creds := map[string]string{"client_id": "cid", "client_secret": "secret"}

	t.Run("Missing Credentials", func(t *testing.T) {
		tc := []map[string]string{
			{},
			{"client_id": "cid"},
			{"client_id": "", "client_secret": "secret"},
		}
		for _, c := range tc {
			if _, err := NewOAuthClient(models.ProviderGoogle, c); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials for %v, got %v", c, err)
			}
		}
	})

	t.Run("Unsupported Provider", func(t *testing.T) {
		if _, err := NewOAuthClient(models.Provider("yahoo"), creds); !errors.Is(err, shared.ErrUnsupportedProvider) {
			t.Errorf("expected ErrUnsupportedProvider, got %v", err)
		}
	})

	t.Run("Google AuthURL", func(t *testing.T) {
		client, err := NewOAuthClient(models.ProviderGoogle, creds)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		u, err := url.Parse(client.AuthURL("state-1"))
		if err != nil {
			t.Fatalf("bad auth url: %v", err)
		}
		q := u.Query()
		if u.Host != "accounts.google.com" {
			t.Errorf("unexpected host %s", u.Host)
		}
		if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" || q.Get("state") != "state-1" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("redirect_uri") != defaultRedirectURI {
			t.Errorf("expected default redirect, got %s", q.Get("redirect_uri"))
		}
		if !strings.Contains(q.Get("scope"), "gmail.readonly") {
			t.Errorf("expected gmail scope, got %s", q.Get("scope"))
		}
	})

	t.Run("Microsoft Tenant", func(t *testing.T) {
		withTenant := map[string]string{"client_id": "cid", "client_secret": "secret", "tenant": "contoso", "redirect_uri": "http://localhost:9000/callback"}
		client, err := NewOAuthClient(models.ProviderMicrosoft, withTenant)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(client.OAuthConfig().Endpoint.AuthURL, "/contoso/") {
			t.Errorf("expected tenant in endpoint, got %s", client.OAuthConfig().Endpoint.AuthURL)
		}
		if client.OAuthConfig().RedirectURL != "http://localhost:9000/callback" {
			t.Errorf("unexpected redirect %s", client.OAuthConfig().RedirectURL)
		}
		if client.Name() != models.ProviderMicrosoft || len(client.Scopes()) != 3 {
			t.Errorf("unexpected client %v %v", client.Name(), client.Scopes())
		}

		common, _ := NewMicrosoftOAuth(creds)
		if !strings.Contains(common.OAuthConfig().Endpoint.TokenURL, "/common/") {
			t.Errorf("expected common tenant, got %s", common.OAuthConfig().Endpoint.TokenURL)
		}
	})

	t.Run("Exchange Requires Code", func(t *testing.T) {
		client, _ := NewGoogleOAuth(creds)
		if _, err := client.Exchange(context.Background(), ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
