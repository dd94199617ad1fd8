package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/oauth2"
)

// TokenStore persists provider tokens. Implemented by [repositories.TokenRepository].
type TokenStore interface {
	Upsert(tok *models.ProviderToken) error
}

// StoredTokenSource is an [oauth2.TokenSource] that refreshes through config
// and writes every refreshed token back to the store.
type StoredTokenSource struct {
	mu     sync.Mutex
	ctx    context.Context
	config *oauth2.Config
	store  TokenStore
	record *models.ProviderToken
	stale  bool
}

// NewStoredTokenSource wraps record. ctx is used for refresh requests.
func NewStoredTokenSource(ctx context.Context, config *oauth2.Config, store TokenStore, record *models.ProviderToken) *StoredTokenSource {
	return &StoredTokenSource{ctx: ctx, config: config, store: store, record: record}
}

// Token returns the stored token while it is valid, otherwise refreshes and persists it.
func (s *StoredTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.record.OAuth2()
	if !s.stale && current.Valid() {
		return current, nil
	}

	if current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoRefreshToken, s.record.Provider)
	}

	fresh, err := s.config.TokenSource(s.ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %w: %s refresh token was revoked", shared.ErrNotAuthenticated, shared.ErrRefreshFailed, s.record.Provider)
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	s.record.Apply(fresh)
	s.stale = false

	if s.store != nil {
		if err := s.store.Upsert(s.record); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}

	return s.record.OAuth2(), nil
}

// Expire forces the next Token call to refresh, even if the stored expiry is in the future.
func (s *StoredTokenSource) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
}

// Client returns an HTTP client that authorizes every request with the current token.
//
// The source is not wrapped in [oauth2.ReuseTokenSource] so that Expire takes effect immediately.
func (s *StoredTokenSource) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &oauth2.Transport{Source: s, Base: base}}
}

// Expirer is implemented by token sources that can be forced to refresh.
type Expirer interface {
	Expire()
}

// WithTokenRetry runs op and, when it fails with [shared.ErrTokenExpired], expires ts
// and runs op exactly once more.
func WithTokenRetry(ctx context.Context, ts Expirer, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil || ts == nil || !errors.Is(err, shared.ErrTokenExpired) {
		return err
	}

	ts.Expire()
	return op(ctx)
}
