package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	tu "github.com/desertthunder/cadence/internal/testing"
	"golang.org/x/oauth2"
)

type memoryTokenStore struct {
	saved []*models.ProviderToken
}

func (m *memoryTokenStore) Upsert(tok *models.ProviderToken) error {
	cp := *tok
	m.saved = append(m.saved, &cp)
	return nil
}

func newTokenServer(t *testing.T, status int, body map[string]any) (*httptest.Server, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected refresh form %v", r.Form)
		}
		tu.WriteJSON(t, w, status, body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestStoredTokenSource(t *testing.T) {
	refreshed := map[string]any{"access_token": "access-2", "token_type": "Bearer", "expires_in": 3600}

	t.Run("Valid Token Is Not Refreshed", func(t *testing.T) {
		server, calls := newTokenServer(t, http.StatusOK, refreshed)
		record := models.NewProviderToken("u1", models.ProviderGoogle, &oauth2.Token{
			AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(time.Hour),
		}, nil)

		ts := NewStoredTokenSource(context.Background(), testOAuthConfig(server.URL), nil, record)
		tok, err := ts.Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tok.AccessToken != "access-1" || atomic.LoadInt32(calls) != 0 {
			t.Errorf("expected stored token without refresh, got %s after %d calls", tok.AccessToken, *calls)
		}
	})

	t.Run("Expired Token Is Refreshed And Persisted", func(t *testing.T) {
		server, calls := newTokenServer(t, http.StatusOK, refreshed)
		store := &memoryTokenStore{}
		record := models.NewProviderToken("u1", models.ProviderGoogle, &oauth2.Token{
			AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Minute),
		}, nil)

		ts := NewStoredTokenSource(context.Background(), testOAuthConfig(server.URL), store, record)
		tok, err := ts.Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tok.AccessToken != "access-2" || atomic.LoadInt32(calls) != 1 {
			t.Errorf("expected refreshed token, got %s", tok.AccessToken)
		}
		if len(store.saved) != 1 || store.saved[0].RefreshToken != "refresh-1" {
			t.Errorf("expected refreshed token persisted with original refresh token, got %+v", store.saved)
		}
	})

	t.Run("Expire Forces Refresh", func(t *testing.T) {
		server, calls := newTokenServer(t, http.StatusOK, refreshed)
		record := models.NewProviderToken("u1", models.ProviderMicrosoft, &oauth2.Token{
			AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(time.Hour),
		}, nil)

		ts := NewStoredTokenSource(context.Background(), testOAuthConfig(server.URL), nil, record)
		ts.Expire()
		if _, err := ts.Token(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if atomic.LoadInt32(calls) != 1 {
			t.Errorf("expected 1 refresh, got %d", *calls)
		}

		if _, err := ts.Token(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if atomic.LoadInt32(calls) != 1 {
			t.Errorf("expected refreshed token to be reused, got %d refreshes", *calls)
		}
	})

	t.Run("No Refresh Token", func(t *testing.T) {
		record := models.NewProviderToken("u1", models.ProviderGoogle, &oauth2.Token{
			AccessToken: "access-1", Expiry: time.Now().Add(-time.Minute),
		}, nil)

		ts := NewStoredTokenSource(context.Background(), testOAuthConfig("http://127.0.0.1:0"), nil, record)
		if _, err := ts.Token(); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("Revoked Refresh Token", func(t *testing.T) {
		server, _ := newTokenServer(t, http.StatusBadRequest, map[string]any{
			"error": "invalid_grant", "error_description": "Token has been expired or revoked.",
		})
		record := models.NewProviderToken("u1", models.ProviderGoogle, &oauth2.Token{
			AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Minute),
		}, nil)

		ts := NewStoredTokenSource(context.Background(), testOAuthConfig(server.URL), nil, record)
		_, err := ts.Token()
		if !errors.Is(err, shared.ErrNotAuthenticated) || !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrNotAuthenticated and ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("Client Authorizes Requests", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer access-1" {
				t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer api.Close()

		record := models.NewProviderToken("u1", models.ProviderGoogle, &oauth2.Token{
			AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(time.Hour),
		}, nil)
		client := NewStoredTokenSource(context.Background(), testOAuthConfig(api.URL), nil, record).Client(nil)

		resp, err := client.Get(api.URL)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		resp.Body.Close()
	})
}

type countingExpirer struct{ n int }

func (c *countingExpirer) Expire() { c.n++ }

func TestWithTokenRetry(t *testing.T) {
	tc := []struct {
		name      string
		errs      []error
		wantCalls int
		wantExp   int
		wantErr   error
	}{
		{name: "Success", errs: []error{nil}, wantCalls: 1},
		{name: "Retries Once On Expired Token", errs: []error{shared.ErrTokenExpired, nil}, wantCalls: 2, wantExp: 1},
		{name: "Second Failure Is Returned", errs: []error{shared.ErrTokenExpired, shared.ErrTokenExpired}, wantCalls: 2, wantExp: 1, wantErr: shared.ErrTokenExpired},
		{name: "Other Errors Are Not Retried", errs: []error{shared.ErrNotFound}, wantCalls: 1, wantErr: shared.ErrNotFound},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			exp := &countingExpirer{}
			calls := 0

			err := WithTokenRetry(context.Background(), exp, func(context.Context) error {
				err := tt.errs[calls]
				calls++
				return err
			})

			if calls != tt.wantCalls || exp.n != tt.wantExp {
				t.Errorf("expected %d calls and %d expiries, got %d and %d", tt.wantCalls, tt.wantExp, calls, exp.n)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
