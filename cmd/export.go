package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/portable/internal/formatter"
	"github.com/desertthunder/portable/internal/tasks"
	"github.com/desertthunder/portable/internal/ui"
	"github.com/urfave/cli/v3"
)

// Export writes a snapshot of a provider's library to disk, one file per playlist.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	name := cmd.String("provider")
	if name == "" {
		name = r.config.Migrate.Source
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if !cmd.IsSet("format") {
		format = formatter.FormatJSON
	}

	source, err := r.providers(ctx, name, r.config)
	if err != nil {
		return fmt.Errorf("failed to initialize %s: %w", name, err)
	}

	progress, stop := r.watch(cmd.Bool("quiet"))
	result, err := tasks.NewExporter(source, r.logger).Export(ctx, tasks.ExportOptions{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate-limit"),
	}, progress)
	stop()
	if result == nil {
		return err
	}

	if cmd.Bool("json") {
		if werr := r.writeJSON(result, true); werr != nil {
			return werr
		}
	} else {
		r.writePlain("%s", ui.ExportSummary(result))
	}
	return err
}
