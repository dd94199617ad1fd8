package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// TokenRepository persists per-provider OAuth tokens, one row per (user, provider).
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `id, user_id, provider, access_token, refresh_token, token_type, expiry, scopes, created_at, updated_at`

// Upsert stores tok, replacing any token the user already holds for the same provider.
//
// An empty refresh token never overwrites a stored one.
func (r *TokenRepository) Upsert(tok *models.ProviderToken) error {
	if err := tok.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if tok.ID() == "" {
		tok.SetID(shared.GenerateID())
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO provider_tokens (id, user_id, provider, access_token, refresh_token, token_type, expiry, scopes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN provider_tokens.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			scopes = CASE WHEN excluded.scopes = '' THEN provider_tokens.scopes ELSE excluded.scopes END,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		tok.ID(), tok.UserID, string(tok.Provider), tok.AccessToken, tok.RefreshToken, tok.TokenType,
		nullTime(tok.Expiry), tok.ScopeString(), utc(tok.CreatedAt()), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s token: %w", tok.Provider, err)
	}

	tok.SetUpdatedAt(now)
	return nil
}

// Get returns the token stored for userID and provider.
func (r *TokenRepository) Get(userID string, provider models.Provider) (*models.ProviderToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM provider_tokens WHERE user_id = ? AND provider = ?`

	tok, err := scanToken(r.db.QueryRow(query, userID, string(provider)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("token", userID, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}
	return tok, nil
}

// Delete removes the token for userID and provider.
func (r *TokenRepository) Delete(userID string, provider models.Provider) error {
	result, err := r.db.Exec(`DELETE FROM provider_tokens WHERE user_id = ? AND provider = ?`, userID, string(provider))
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return expectOne(result, "token", userID, provider)
}

// List returns all tokens for provider, or every token when provider is empty.
func (r *TokenRepository) List(provider models.Provider) ([]*models.ProviderToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM provider_tokens`
	args := []any{}
	if provider != "" {
		query += ` WHERE provider = ?`
		args = append(args, string(provider))
	}
	query += ` ORDER BY user_id, provider`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.ProviderToken
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// ListForUser returns every provider token held by userID.
func (r *TokenRepository) ListForUser(userID string) ([]*models.ProviderToken, error) {
	rows, err := r.db.Query(`SELECT `+tokenColumns+` FROM provider_tokens WHERE user_id = ? ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.ProviderToken
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

func scanToken(row scanner) (*models.ProviderToken, error) {
	var (
		id, userID, provider, access, refresh, tokenType, scopes string
		expiry                                                   sql.NullTime
		createdAt, updatedAt                                     time.Time
	)

	if err := row.Scan(&id, &userID, &provider, &access, &refresh, &tokenType, &expiry, &scopes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	tok := &models.ProviderToken{
		UserID:       userID,
		Provider:     models.Provider(provider),
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
	}
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	tok.SetScopeString(scopes)
	tok.SetID(id)
	tok.SetCreatedAt(createdAt)
	tok.SetUpdatedAt(updatedAt)
	return tok, nil
}
