package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/server"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const authTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization-code flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and stores the exchanged token in the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or .env", shared.ErrInvalidArgument, r.configPath)
	}

	token, err := r.doOAuth(ctx, r.spotify, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: tapedeck catalog fetch\n")
	return nil
}

// doOAuth serves /callback on the configured address until one callback arrives or the timeout passes.
func (r *Runner) doOAuth(ctx context.Context, svc services.OAuthService, openBrowser bool) (*oauth2.Token, error) {
	state, err := server.NewState()
	if err != nil {
		return nil, err
	}

	authURL := svc.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(svc, state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(oauthHandler)

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, r.config.Server.Addr(), router, 5*time.Second, r.logger)
	})

	var result server.OAuthResult
	g.Go(func() error {
		defer cancel()
		select {
		case result = <-oauthHandler.Result():
			return nil
		case <-gctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: authorization timed out after %v", shared.ErrAuthFailed, authTimeout)
			}
			return gctx.Err()
		}
	})

	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	} else {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", authTimeout)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrTokenExchangeFailed)
	}
	return result.Token, nil
}
