package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/server"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// authTimeout bounds how long the local callback server waits for the browser.
const authTimeout = 2 * time.Minute

// authAction returns the login action for provider.
func (r *Runner) authAction(provider models.Provider) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return r.AuthLogin(ctx, provider)
	}
}

func (r *Runner) credentials(provider models.Provider) map[string]string {
	if provider == models.ProviderMicrosoft {
		return r.config.Credentials.Microsoft.Map()
	}
	return r.config.Credentials.Google.Map()
}

// AuthLogin performs the OAuth2 authorization code flow for provider and stores the token for the profile user.
//
// Starts a local HTTP server, opens the browser for consent, and exchanges the returned code.
func (r *Runner) AuthLogin(ctx context.Context, provider models.Provider) error {
	if err := r.open(); err != nil {
		return err
	}

	client, err := services.NewOAuthClient(provider, r.credentials(provider))
	if err != nil {
		return fmt.Errorf("%w: %s client_id and client_secret must be set in %s", shared.ErrMissingCredentials, provider, r.configPath)
	}

	token, err := r.doOAuth(ctx, client)
	if err != nil {
		return err
	}

	stored := models.NewProviderToken(r.user.ID(), provider, token, client.Scopes())
	if err := r.engine.Stores().Tokens.Upsert(stored); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.writePlainln("✓ %s connected for %s", provider.DisplayName(), r.user.Email)
	r.writePlain("You can now use: cadence calendar sync --provider %s\n", provider)
	return nil
}

// AuthStatus lists the stored provider tokens for the profile user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	tokens, err := r.engine.Stores().Tokens.ListForUser(r.user.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type status struct {
			Provider string    `json:"provider"`
			Expiry   time.Time `json:"expiry"`
			Refresh  bool      `json:"refreshable"`
			Scopes   []string  `json:"scopes"`
		}
		out := make([]status, 0, len(tokens))
		for _, t := range tokens {
			out = append(out, status{string(t.Provider), t.Expiry, t.RefreshToken != "", t.Scopes})
		}
		return r.writeJSON(out, true)
	}

	r.writePlainHeader("Connections for " + r.user.Email)
	connected := map[models.Provider]*models.ProviderToken{}
	for _, t := range tokens {
		connected[t.Provider] = t
	}
	for _, p := range []models.Provider{models.ProviderGoogle, models.ProviderMicrosoft} {
		t, ok := connected[p]
		switch {
		case !ok:
			r.writePlain("✗ %s: not connected\n", p.DisplayName())
		case t.RefreshToken == "" && !t.Expiry.IsZero() && t.Expiry.Before(r.now()):
			r.writePlain("⚠ %s: expired %s, run cadence auth %s\n", p.DisplayName(), t.Expiry.Format(time.RFC822), p)
		default:
			r.writePlain("✓ %s: connected\n", p.DisplayName())
		}
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, client *services.OAuthClient) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := client.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(client, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting OAuth callback server", "provider", client.Name(), "addr", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	r.writePlain("→ Opening browser for %s authorization...\n", client.Name().DisplayName())
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
