package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portable/internal/cache"
	"github.com/desertthunder/portable/internal/match"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
)

// Recorder persists a run and its item outcomes.
//
// Recording failures are logged and never interrupt a run.
type Recorder interface {
	StartRun(run *models.Run) error
	RecordItem(item *models.RunItem) error
	FinishRun(run *models.Run) error
}

// Options selects what a [Migrator.Run] does.
type Options struct {
	Passes     []models.Pass       // passes to run, in canonical order; empty runs all
	AlbumTypes []string            // album types to migrate, case-insensitive; empty migrates all
	Limits     map[models.Pass]int // per-pass cap on source entities; zero is unlimited
	DryRun     bool
	Scorer     match.Scorer
	MinScore   float64
}

// OptionsFromConfig builds run options from the migrate section of the config.
func OptionsFromConfig(cfg shared.MigrateConfig) (Options, error) {
	opts := Options{
		AlbumTypes: cfg.AlbumTypes,
		DryRun:     cfg.DryRun,
		MinScore:   cfg.MinScore,
		Limits: map[models.Pass]int{
			models.PassArtists:     cfg.Limits.Artists,
			models.PassAlbums:      cfg.Limits.Albums,
			models.PassLikedTracks: cfg.Limits.LikedTracks,
			models.PassPlaylists:   cfg.Limits.Playlists,
		},
	}

	for _, name := range cfg.Passes {
		pass, err := models.ParsePass(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return Options{}, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		opts.Passes = append(opts.Passes, pass)
	}

	scorer, err := match.ParseScorer(cfg.Scorer)
	if err != nil {
		return Options{}, err
	}
	opts.Scorer = scorer
	return opts, nil
}

// selected returns the passes to run in canonical order.
func (o Options) selected() []models.Pass {
	if len(o.Passes) == 0 {
		return models.AllPasses()
	}
	want := make(map[models.Pass]bool, len(o.Passes))
	for _, p := range o.Passes {
		want[p] = true
	}
	var out []models.Pass
	for _, p := range models.AllPasses() {
		if want[p] {
			out = append(out, p)
		}
	}
	return out
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// PassReport summarizes one pass.
type PassReport struct {
	Pass    models.Pass       `json:"pass" yaml:"pass"`
	Tally   models.Tally      `json:"tally" yaml:"tally"`
	Skipped bool              `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Message string            `json:"message,omitempty" yaml:"message,omitempty"`
	Items   []*models.RunItem `json:"-" yaml:"-"`
}

// MigrationResult contains everything a run produced.
type MigrationResult struct {
	Run    *models.Run
	Passes []PassReport
	Tally  models.Tally
	Cache  cache.Stats
}

// Items returns every item outcome in run order.
func (r *MigrationResult) Items() []*models.RunItem {
	var items []*models.RunItem
	for _, p := range r.Passes {
		items = append(items, p.Items...)
	}
	return items
}

// Migrator copies a library from a source provider to a target provider.
type Migrator struct {
	source   services.MusicLibrary
	target   services.MusicLibrary
	recorder Recorder
	logger   *log.Logger
}

// NewMigrator creates a migrator. A nil logger discards output.
func NewMigrator(source, target services.MusicLibrary, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Migrator{source: source, target: target, logger: logger}
}

// WithRecorder persists subsequent runs through r.
func (m *Migrator) WithRecorder(r Recorder) *Migrator {
	m.recorder = r
	return m
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// migration is the state of a single run.
type migration struct {
	*Migrator
	opts     Options
	progress chan<- ProgressUpdate
	target   *cache.Library
	resolver *match.Resolver
	guard    *WriteGuard
	run      *models.Run
	report   *PassReport
	logger   *log.Logger
}

// Run executes the selected passes in order: artists, albums, liked tracks, playlists.
//
// A fresh cache is used for every call. Item failures are recorded and the run continues;
// a failed listing ends only its pass. The returned error is non-nil only when ctx is done.
func (m *Migrator) Run(ctx context.Context, opts Options, progress chan<- ProgressUpdate) (*MigrationResult, error) {
	if m.source == nil || m.target == nil {
		return nil, fmt.Errorf("%w: source and target providers are required", shared.ErrServiceUnavailable)
	}

	store := cache.NewStore()
	target := cache.Wrap(m.target, store)
	run := models.NewRun(0, m.source.Name(), m.target.Name(), opts.DryRun)

	if m.recorder != nil {
		if err := m.recorder.StartRun(run); err != nil {
			m.logger.Warn("failed to record run", "error", err)
		}
	}
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}

	logger := shared.WithLogger(m.logger, "run", run.ID())
	mg := &migration{
		Migrator: m,
		opts:     opts,
		progress: progress,
		target:   target,
		resolver: match.NewResolver(target, match.Options{
			Dialect:  match.DialectFor(m.target.Name()),
			Scorer:   opts.Scorer,
			MinScore: opts.MinScore,
			Logger:   logger,
		}),
		guard:  NewWriteGuard(target, opts.DryRun),
		run:    run,
		logger: logger,
	}

	logger.Info("starting migration", "source", run.Source(), "target", run.Target(), "dry_run", opts.DryRun)

	result := &MigrationResult{Run: run}
	for _, pass := range opts.selected() {
		if ctx.Err() != nil {
			break
		}
		report := mg.runPass(ctx, pass)
		result.Passes = append(result.Passes, report)
		result.Tally.Merge(report.Tally)
		sendProgress(progress, completePassUpdate(report))
	}
	result.Cache = store.Stats()

	status, msg := models.RunCompleted, ""
	if err := ctx.Err(); err != nil {
		status, msg = models.RunFailed, err.Error()
	}
	run.Finish(status, result.Tally, msg)

	if m.recorder != nil {
		if err := m.recorder.FinishRun(run); err != nil {
			logger.Warn("failed to record run completion", "error", err)
		}
	}

	t := result.Tally
	logger.Info("migration finished", "status", status, "written", t.Written, "existing", t.Existing,
		"unresolved", t.Unresolved, "failed", t.Failed, "skipped", t.Skipped,
		"cache_hits", result.Cache.Hits, "cache_misses", result.Cache.Misses)
	sendProgress(progress, completeRunUpdate(result))

	return result, ctx.Err()
}

// requirement returns the target capabilities pass needs.
func requirement(pass models.Pass) services.Capability {
	if pass == models.PassPlaylists {
		return services.CapSearch | services.CapWritePlaylists
	}
	return services.CapSearch | services.CapWriteLibrary
}

func (mg *migration) runPass(ctx context.Context, pass models.Pass) PassReport {
	report := PassReport{Pass: pass}
	mg.report = &report
	logger := mg.logger.With("pass", pass)

	switch {
	case !mg.source.Capabilities().Has(services.CapRead):
		return mg.skip(report, logger, fmt.Sprintf("%s cannot read its library", mg.source.Name()))
	case !mg.target.Capabilities().Has(requirement(pass)):
		return mg.skip(report, logger, fmt.Sprintf("%s supports %s, needs %s", mg.target.Name(), mg.target.Capabilities(), requirement(pass)))
	}

	sendProgress(mg.progress, fetchingSourceUpdate(pass, mg.source.Name()))

	var err error
	switch pass {
	case models.PassArtists:
		err = mg.artists(ctx)
	case models.PassAlbums:
		err = mg.albums(ctx)
	case models.PassLikedTracks:
		err = mg.likedTracks(ctx)
	case models.PassPlaylists:
		err = mg.playlists(ctx)
	}

	if err != nil {
		if errors.Is(err, shared.ErrUnsupported) {
			return mg.skip(report, logger, err.Error())
		}
		report.Message = err.Error()
		logger.Error("pass ended early", "error", err)
	}
	return report
}

func (mg *migration) skip(report PassReport, logger *log.Logger, reason string) PassReport {
	report.Skipped = true
	report.Message = reason
	logger.Warn("skipping pass", "reason", reason)
	sendProgress(mg.progress, skipPassUpdate(report.Pass, reason))
	return report
}

// record tallies, logs, persists and reports one item outcome.
func (mg *migration) record(step, total int, item *models.RunItem) {
	mg.report.Tally.Add(item.Outcome())
	mg.report.Items = append(mg.report.Items, item)

	fields := []any{"pass", item.Pass(), "kind", item.Kind(), "item", item.Label(), "outcome", item.Outcome()}
	if item.TargetID() != "" {
		fields = append(fields, "target_id", item.TargetID())
	}
	if item.Message() != "" {
		fields = append(fields, "message", item.Message())
	}
	switch item.Outcome() {
	case models.OutcomeFailed:
		mg.logger.Error("item failed", fields...)
	case models.OutcomeUnresolved:
		mg.logger.Warn("item unresolved", fields...)
	default:
		mg.logger.Info("item processed", fields...)
	}

	if mg.recorder != nil {
		if err := mg.recorder.RecordItem(item); err != nil {
			mg.logger.Warn("failed to record item", "item", item.Label(), "error", err)
		}
	}
	sendProgress(mg.progress, itemUpdate(step, total, item))
}

func (mg *migration) newItem(pass models.Pass, kind models.Kind, label, sourceID string) *models.RunItem {
	item := models.NewRunItem(mg.run.ID(), pass, kind, label, models.OutcomeFailed)
	item.SetSourceID(sourceID)
	return item
}

// resolutionOutcome maps a resolution error to an outcome, or "" when the match is usable.
func resolutionOutcome(err error) models.Outcome {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrNoMatch):
		return models.OutcomeUnresolved
	default:
		return models.OutcomeFailed
	}
}

func matchMessage(m *match.Match, dryRun bool) string {
	msg := fmt.Sprintf("matched %q via %q", m.Item.Name, m.Query)
	if m.Candidates > 1 {
		msg += fmt.Sprintf(" (score %.2f of %d)", m.Score, m.Candidates)
	}
	if dryRun {
		msg += " [dry run]"
	}
	return msg
}

func finish(item *models.RunItem, outcome models.Outcome, err error) *models.RunItem {
	item.SetOutcome(outcome)
	if err != nil {
		item.SetMessage(err.Error())
	}
	return item
}

func (mg *migration) artists(ctx context.Context) error {
	artists, err := mg.source.SubscribedArtists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list artists: %w", err)
	}
	artists = limit(artists, mg.opts.Limits[models.PassArtists])
	total := len(artists)
	sendProgress(mg.progress, fetchedSourceUpdate(models.PassArtists, total))

	for i, artist := range artists {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		item := mg.newItem(models.PassArtists, models.KindArtist, artist.Name, artist.ID)

		m, err := mg.resolver.ResolveArtist(ctx, artist)
		if o := resolutionOutcome(err); o != "" {
			mg.record(i+1, total, finish(item, o, err))
			continue
		}
		item.SetTargetID(m.Item.ID)
		item.SetMessage(matchMessage(m, mg.guard.DryRun()))

		outcome, err := mg.guard.FollowArtist(ctx, m.Artist())
		mg.record(i+1, total, finish(item, outcome, err))
	}
	return nil
}

func (mg *migration) albums(ctx context.Context) error {
	albums, err := mg.source.SavedAlbums(ctx)
	if err != nil {
		return fmt.Errorf("failed to list albums: %w", err)
	}
	albums = limit(albums, mg.opts.Limits[models.PassAlbums])
	total := len(albums)
	sendProgress(mg.progress, fetchedSourceUpdate(models.PassAlbums, total))

	for i, album := range albums {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		item := mg.newItem(models.PassAlbums, models.KindAlbum, album.String(), album.ID)

		if len(mg.opts.AlbumTypes) > 0 && !album.HasType(mg.opts.AlbumTypes...) {
			item.SetMessage(fmt.Sprintf("album type %q not in %s", album.Type, strings.Join(mg.opts.AlbumTypes, ", ")))
			mg.record(i+1, total, finish(item, models.OutcomeSkipped, nil))
			continue
		}

		m, err := mg.resolver.ResolveAlbum(ctx, album)
		if o := resolutionOutcome(err); o != "" {
			mg.record(i+1, total, finish(item, o, err))
			continue
		}
		item.SetTargetID(m.Item.ID)
		item.SetMessage(matchMessage(m, mg.guard.DryRun()))

		outcome, err := mg.guard.SaveAlbum(ctx, m.Album())
		mg.record(i+1, total, finish(item, outcome, err))
	}
	return nil
}

func (mg *migration) likedTracks(ctx context.Context) error {
	tracks, err := mg.source.LikedTracks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list liked tracks: %w", err)
	}
	tracks = limit(tracks, mg.opts.Limits[models.PassLikedTracks])
	total := len(tracks)
	sendProgress(mg.progress, fetchedSourceUpdate(models.PassLikedTracks, total))

	for i, track := range tracks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		item := mg.newItem(models.PassLikedTracks, models.KindTrack, track.String(), track.ID)

		m, err := mg.resolver.ResolveTrack(ctx, track)
		if o := resolutionOutcome(err); o != "" {
			mg.record(i+1, total, finish(item, o, err))
			continue
		}
		item.SetTargetID(m.Item.ID)
		item.SetMessage(matchMessage(m, mg.guard.DryRun()))

		outcome, err := mg.guard.LikeTrack(ctx, m.Track())
		mg.record(i+1, total, finish(item, outcome, err))
	}
	return nil
}

func (mg *migration) playlists(ctx context.Context) error {
	playlists, err := mg.source.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}
	playlists = limit(playlists, mg.opts.Limits[models.PassPlaylists])
	total := len(playlists)
	sendProgress(mg.progress, fetchedSourceUpdate(models.PassPlaylists, total))

	for i, pl := range playlists {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mg.playlist(ctx, i+1, total, pl)
	}
	return nil
}

// playlist migrates one source playlist: ensure the target playlist, resolve every track,
// then append the ones the target does not already hold.
func (mg *migration) playlist(ctx context.Context, step, total int, pl models.Playlist) {
	item := mg.newItem(models.PassPlaylists, models.KindPlaylist, pl.Name, pl.ID)

	tracks := pl.Tracks
	if tracks == nil {
		fetched, err := mg.source.PlaylistTracks(ctx, pl.ID)
		if err != nil {
			mg.record(step, total, finish(item, models.OutcomeFailed, fmt.Errorf("failed to fetch source tracks: %w", err)))
			return
		}
		tracks = fetched
	}

	target, created, err := mg.guard.EnsurePlaylist(ctx, pl)
	if err != nil {
		mg.record(step, total, finish(item, models.OutcomeFailed, err))
		return
	}
	sendProgress(mg.progress, playlistUpdate(step, total, target, created))

	item.SetTargetID(target.ID)
	outcome := models.OutcomeExists
	if created {
		outcome = models.OutcomeWritten
		item.SetMessage("created")
		if mg.guard.DryRun() {
			item.SetMessage("created [dry run]")
		}
	}
	mg.record(step, total, finish(item, outcome, nil))

	var resolved []models.Track
	var pending []*models.RunItem
	for j, track := range tracks {
		if ctx.Err() != nil {
			return
		}
		ti := mg.newItem(models.PassPlaylists, models.KindTrack, fmt.Sprintf("%s / %s", pl.Name, track), track.ID)

		m, err := mg.resolver.ResolveTrack(ctx, track)
		if o := resolutionOutcome(err); o != "" {
			mg.record(j+1, len(tracks), finish(ti, o, err))
			continue
		}
		ti.SetTargetID(m.Item.ID)
		ti.SetMessage(matchMessage(m, mg.guard.DryRun()))
		resolved = append(resolved, m.Track())
		pending = append(pending, ti)
	}

	writes, _ := mg.guard.AddTracks(ctx, *target, resolved)
	added := 0
	for k, ti := range pending {
		w := writes[k]
		if w.Outcome == models.OutcomeWritten {
			added++
		}
		mg.record(k+1, len(pending), finish(ti, w.Outcome, w.Err))
	}
	if added > 0 {
		sendProgress(mg.progress, addTracksUpdate(step, total, target, added))
	}
}
