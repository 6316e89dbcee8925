package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/scsync/internal/server"
	"github.com/desertthunder/scsync/internal/services"
	"github.com/desertthunder/scsync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthTimeout bounds how long [Runner.AuthConnect] waits for the browser callback.
const AuthTimeout = 2 * time.Minute

// AuthConnect performs the OAuth2 flow for SoundCloud.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) AuthConnect(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.SoundCloud
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: SoundCloud client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	svc, err := r.soundcloud(ctx)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, svc, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}
	if err := svc.Authenticate(ctx, token); err != nil {
		return err
	}

	r.writePlainln("%s Authorization successful", r.styles.OK("✓"))
	r.writePlain("%s Token saved to %s\n", r.styles.OK("✓"), r.configPath)

	user, err := svc.Me(ctx)
	if err != nil {
		r.logger.Warn("failed to look up the connected account", "error", err)
		return nil
	}

	r.writePlain("Connected as %s (id %s)\n\n", user.Username, user.ID)
	r.writePlain("%s\n", r.styles.Help("You can now use: scsync update --user "+user.ID.String()))
	return nil
}

// AuthStatus reports the account the stored token belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if r.config.Credentials.SoundCloud.Token() == nil && r.service == nil {
		r.writePlain("%s Not authorized\n", r.styles.Warning("✗"))
		return r.writePlain("%s\n", r.styles.Help("Run 'scsync auth connect' to authorize"))
	}

	svc, err := r.soundcloud(ctx)
	if err != nil {
		return err
	}

	user, err := svc.Me(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			r.writePlain("%s Stored token was rejected\n", r.styles.Error("✗"))
			return r.writePlain("%s\n", r.styles.Help("Run 'scsync auth connect' to authorize again"))
		}
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	r.writePlain("%s Authorized\n", r.styles.OK("✓"))
	r.writePlain("User: %s\n", user.Username)
	return r.writePlain("ID: %s\n", user.ID)
}

// doOAuth runs a one-shot callback server until a single authorization completes.
func (r *Runner) doOAuth(ctx context.Context, svc services.OAuthService, openBrowser bool) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(svc, nil, r.logger)
	oauthHandler.AddState(state)
	router := server.NewBasicRouter()
	router.Use(server.RecoverMiddleware(r.logger), server.LoggingMiddleware(r.logger))
	router.Handler(oauthHandler)

	serverAddr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := svc.ConnectURL(state)
	if openBrowser {
		r.writePlain("→ Opening browser for SoundCloud authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("%s Could not open browser automatically.", r.styles.Warning("⚠"))
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", AuthTimeout)

	timeout := time.NewTimer(AuthTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, AuthTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
