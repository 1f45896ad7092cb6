package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portable/internal/formatter"
	"github.com/desertthunder/portable/internal/match"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/repositories"
	"github.com/desertthunder/portable/internal/shared"
	"github.com/desertthunder/portable/internal/tasks"
	"github.com/desertthunder/portable/internal/ui"
	"github.com/urfave/cli/v3"
)

// migrateConfig applies the flags that were set on cmd over the configured defaults.
func migrateConfig(cmd *cli.Command, base shared.MigrateConfig) shared.MigrateConfig {
	mc := base
	if cmd.IsSet("source") {
		mc.Source = cmd.String("source")
	}
	if cmd.IsSet("target") {
		mc.Target = cmd.String("target")
	}
	if cmd.IsSet("pass") {
		mc.Passes = cmd.StringSlice("pass")
	}
	if cmd.IsSet("album-types") {
		mc.AlbumTypes = cmd.StringSlice("album-types")
	}
	if cmd.IsSet("scorer") {
		mc.Scorer = cmd.String("scorer")
	}
	if cmd.IsSet("min-score") {
		mc.MinScore = cmd.Float("min-score")
	}
	if cmd.IsSet("dry-run") {
		mc.DryRun = cmd.Bool("dry-run")
	}
	if cmd.IsSet("rps") {
		mc.RequestsPerSecond = cmd.Float("rps")
	}

	limits := map[string]*int{
		"limit-artists":      &mc.Limits.Artists,
		"limit-albums":       &mc.Limits.Albums,
		"limit-liked-tracks": &mc.Limits.LikedTracks,
		"limit-playlists":    &mc.Limits.Playlists,
	}
	for name, dst := range limits {
		if cmd.IsSet(name) {
			*dst = int(cmd.Int(name))
		}
	}
	return mc
}

// Migrate copies the source library into the target catalog.
//
// Flags override the [migrate] section of the config. The run is recorded in the history
// database unless --no-history is given; an unavailable database only disables recording.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if cmd.Bool("verbose") {
		r.logger.SetLevel(log.DebugLevel)
	}

	mc := migrateConfig(cmd, r.config.Migrate)
	if mc.Source == "" || mc.Target == "" {
		return fmt.Errorf("%w: --source and --target are required", shared.ErrMissingArgument)
	}
	if strings.EqualFold(mc.Source, mc.Target) {
		return fmt.Errorf("%w: source and target must differ", shared.ErrInvalidArgument)
	}

	opts, err := tasks.OptionsFromConfig(mc)
	if err != nil {
		return err
	}

	report := cmd.IsSet("format")
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	cfg := *r.config
	cfg.Migrate = mc
	source, err := r.providers(ctx, mc.Source, &cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize source %s: %w", mc.Source, err)
	}
	target, err := r.providers(ctx, mc.Target, &cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize target %s: %w", mc.Target, err)
	}

	migrator := tasks.NewMigrator(source, target, r.logger)
	if !cmd.Bool("no-history") {
		db, err := r.openDatabase()
		if err != nil {
			r.logger.Warn("run history unavailable, continuing without it", "error", err)
		} else {
			defer db.Close()
			migrator.WithRecorder(repositories.NewRunRecorder(db))
		}
	}

	progress, stop := r.watch(cmd.Bool("quiet"))
	result, runErr := migrator.Run(ctx, opts, progress)
	stop()
	if result == nil {
		return runErr
	}

	if report {
		err = formatter.WriteReport(r.output, formatter.RunReport{Run: result.Run, Items: result.Items()}, format)
	} else {
		err = r.writePlain("%s", ui.RunSummary(result, int(cmd.Int("max-issues"))))
	}
	if runErr != nil {
		return runErr
	}
	return err
}

func parseKind(s string) (models.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "artist", "artists":
		return models.KindArtist, nil
	case "album", "albums":
		return models.KindAlbum, nil
	case "", "track", "tracks", "song":
		return models.KindTrack, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q (want artist, album or track)", shared.ErrInvalidArgument, s)
	}
}

// Resolve searches the target catalog for one entity and prints the match it would use.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrMissingArgument)
	}
	kind, err := parseKind(cmd.String("kind"))
	if err != nil {
		return err
	}

	mc := migrateConfig(cmd, r.config.Migrate)
	scorer, err := match.ParseScorer(mc.Scorer)
	if err != nil {
		return err
	}

	target, err := r.providers(ctx, mc.Target, r.config)
	if err != nil {
		return fmt.Errorf("failed to initialize target %s: %w", mc.Target, err)
	}
	resolver := match.NewResolver(target, match.Options{
		Dialect:  match.DialectFor(target.Name()),
		Scorer:   scorer,
		MinScore: mc.MinScore,
		Logger:   r.logger,
	})

	artists := models.NewArtists(cmd.StringSlice("artist")...)
	var m *match.Match
	switch kind {
	case models.KindArtist:
		m, err = resolver.ResolveArtist(ctx, models.Artist{Name: name})
	case models.KindAlbum:
		m, err = resolver.ResolveAlbum(ctx, models.Album{Name: name, Artists: artists})
	default:
		track := models.Track{Name: name, Artists: artists}
		if album := cmd.String("album"); album != "" {
			track.Album = &models.Album{Name: album}
		}
		m, err = resolver.ResolveTrack(ctx, track)
	}

	if errors.Is(err, shared.ErrNoMatch) {
		return r.writePlain("✗ No %s match on %s: %v\n", kind, target.Name(), err)
	}
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(m, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s match on %s", kind, target.Name()))
	r.writePlain("Name:       %s\n", m.Item.Name)
	if len(m.Item.Artists) > 0 {
		r.writePlain("Artists:    %s\n", formatter.ArtistNames(m.Item.Artists))
	}
	if m.Item.Album != "" {
		r.writePlain("Album:      %s\n", m.Item.Album)
	}
	r.writePlain("ID:         %s\n", m.Item.ID)
	r.writePlain("Query:      %s\n", m.Query)
	return r.writePlain("Score:      %.2f (%d candidates)\n", m.Score, m.Candidates)
}
