package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials.spotify client_id and client_secret\n")
	r.writePlain("2. Run 'portable auth spotify'\n")
	return r.writePlain("3. Run 'portable setup youtube --curl-file <file>'\n")
}

// SetupDatabase initializes the history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.logger.Info("rolled back latest migration")
	} else {
		applied, err := shared.RunMigrations(db)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		r.logger.Info("migrations applied", "count", applied)
	}

	status, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}
	r.writePlain("Database: %s\n", r.config.Database.Path)
	for _, m := range status {
		r.writePlain("  ✓ %04d applied %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	if len(status) == 0 {
		r.writePlain("  no migrations applied\n")
	}
	return nil
}

// SetupYouTube configures YouTube Music authentication from browser headers.
//
// Accepts a "Copy as cURL" command, sends its headers to the proxy and writes the returned
// auth file, then points credentials.youtube.headers_path at it.
func (r *Runner) SetupYouTube(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var headers *shared.BrowserHeaders
	var err error
	if curlFile != "" {
		headers, err = shared.ParseCurlFile(curlFile)
	} else {
		headers, err = shared.ParseCurl([]byte(curlCmd))
	}
	if err != nil {
		return fmt.Errorf("failed to parse cURL command: %w", err)
	}
	r.logger.Debug("parsed browser headers", "count", len(headers.Headers))

	yt := services.NewYouTubeService(r.config.Credentials.YouTube.ProxyURL, r.httpClient)
	setupResp, err := yt.SetupBrowser(ctx, headers.Raw())
	if err != nil {
		return fmt.Errorf("setup request failed: %w", err)
	}
	if !setupResp.Success {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, setupResp.Message)
	}

	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".portable", "browser.json")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	authJSON, err := shared.MarshalJSON(setupResp.AuthContent, true)
	if err != nil {
		return fmt.Errorf("failed to marshal auth content: %w", err)
	}
	if err := os.WriteFile(outputPath, authJSON, 0600); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}
	r.logger.Info("auth file saved", "path", outputPath)

	r.config.Credentials.YouTube.HeadersPath = outputPath
	if r.configExists() {
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		r.logger.Info("config updated", "path", r.configPath)
	} else {
		r.writePlain("Set credentials.youtube.headers_path = %q in your config\n", outputPath)
	}

	r.writePlain("✓ YouTube Music authentication configured\n")
	return r.writePlain("Auth file saved to: %s\n", outputPath)
}
