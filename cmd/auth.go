package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/portable/internal/server"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// AuthSpotify runs the authorization-code flow through a local callback server and
// saves the resulting tokens to the config file.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	configPath := r.configPath
	if configPath == "" {
		configPath = cmd.String("config")
	}

	spotify, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map(), services.SpotifyOptions{
		HTTPClient: r.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize spotify: %w", err)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}

	host, port := r.config.Server.Host, r.config.Server.Port
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}
	callback := server.NewCallbackServer(
		fmt.Sprintf("%s:%d", host, port),
		server.NewOAuthHandler("Spotify", spotify.GetOAuthConfig(), state),
		r.logger,
	)
	if err := callback.Start(); err != nil {
		return err
	}

	authURL := spotify.GetAuthURL(state)
	opened := false
	if !cmd.Bool("no-browser") {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		} else {
			opened = true
			r.writePlain("Opened browser for Spotify authorization\n")
		}
	}
	if !opened {
		r.writePlain("Visit this URL to authorize:\n%s\n", authURL)
	}
	r.writePlain("Waiting for authorization on %s...\n", callback.Addr())

	token, err := callback.Wait(ctx, authTimeout)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return err
	}
	if err := shared.SaveConfig(configPath, r.config); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	r.logger.Info("spotify tokens saved", "path", configPath)
	return r.writePlain("✓ Spotify authorized, tokens saved to %s\n", configPath)
}

// AuthStatus reports which providers can be constructed from the current config.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	r.writePlainHeader("Provider status")
	for _, name := range []string{services.SpotifyName, services.YouTubeName} {
		lib, err := r.providers(ctx, name, r.config)
		if err != nil {
			r.writePlain("✗ %-8s %v\n", name, err)
			continue
		}
		r.writePlain("✓ %-8s %s\n", name, lib.Capabilities())
	}
	return nil
}
