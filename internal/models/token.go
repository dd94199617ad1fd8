package models

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ProviderToken is a stored OAuth token for one user and provider.
//
// At most one token exists per (user, provider); the database enforces it.
type ProviderToken struct {
	base
	UserID       string
	Provider     Provider
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scopes       []string
}

// NewProviderToken copies the fields of an [oauth2.Token] into a storable row.
func NewProviderToken(userID string, provider Provider, tok *oauth2.Token, scopes []string) *ProviderToken {
	pt := &ProviderToken{base: newBase(), UserID: userID, Provider: provider, Scopes: scopes}
	pt.Apply(tok)
	return pt
}

// Apply overwrites the credential fields with tok, keeping the stored refresh token when tok has none.
func (t *ProviderToken) Apply(tok *oauth2.Token) {
	if tok == nil {
		return
	}
	t.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		t.RefreshToken = tok.RefreshToken
	}
	t.TokenType = tok.TokenType
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}
	t.Expiry = tok.Expiry
}

// OAuth2 converts the row back into an [oauth2.Token].
func (t *ProviderToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// ScopeString joins scopes with spaces, the OAuth wire format.
func (t *ProviderToken) ScopeString() string { return strings.Join(t.Scopes, " ") }

// SetScopeString splits a space separated scope list.
func (t *ProviderToken) SetScopeString(s string) { t.Scopes = strings.Fields(s) }

func (t *ProviderToken) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := ParseProvider(string(t.Provider)); err != nil {
		return err
	}
	if t.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	return nil
}
