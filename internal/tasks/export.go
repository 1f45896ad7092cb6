package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portable/internal/formatter"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
	"golang.org/x/time/rate"
)

// ExportSource is the read side of a provider.
type ExportSource interface {
	Name() string
	services.LibraryReader
}

// ExportOptions configures a library snapshot export.
type ExportOptions struct {
	Format     formatter.Format // text, markdown, csv, yaml or json
	OutputDir  string           // Base output directory (default: {provider}_export_{epoch})
	NumWorkers int              // Concurrent playlist fetches (default: 5, max 10)
	RateLimit  float64          // Playlist fetches per second (default: 5)
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Tracks       int      `json:"tracks"`
	Files        []string `json:"files,omitempty"`
	Success      bool     `json:"success"`
	Error        error    `json:"-"`
	ErrorMessage string   `json:"error,omitempty"`
}

// ExportResult summarizes a library snapshot export. It is also written as the manifest.
type ExportResult struct {
	Provider          string                 `json:"provider"`
	Format            formatter.Format       `json:"format"`
	ExportedAt        time.Time              `json:"exported_at"`
	OutputDirectory   string                 `json:"output_directory"`
	LibraryFile       string                 `json:"library_file"`
	ManifestPath      string                 `json:"-"`
	Skipped           []models.Pass          `json:"skipped,omitempty"`
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	Results           []PlaylistExportResult `json:"results"`
}

// Exporter writes a snapshot of a provider's library to disk.
type Exporter struct {
	source ExportSource
	logger *log.Logger
}

// NewExporter creates an exporter. A nil logger discards output.
func NewExporter(source ExportSource, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Exporter{source: source, logger: logger}
}

type playlistJob struct {
	index    int
	playlist models.Playlist
}

// Export lists the source library and writes it with one file per playlist.
//
// Playlist memberships are fetched by a rate-limited worker pool. A failed playlist is recorded
// in the result and the export continues; a failed listing aborts it. Sections the provider
// cannot read are skipped. The manifest is written last as export_manifest.json.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions, progress chan<- ProgressUpdate) (*ExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: source not initialized", shared.ErrServiceUnavailable)
	}

	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("%s_export_%d", e.source.Name(), time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		Provider:        e.source.Name(),
		Format:          opts.Format,
		ExportedAt:      time.Now().UTC(),
		OutputDirectory: opts.OutputDir,
	}
	lib := formatter.Library{Provider: e.source.Name()}

	var err error
	if lib.Artists, err = listSection(ctx, e, result, progress, models.PassArtists, e.source.SubscribedArtists); err != nil {
		return nil, err
	}
	if lib.Albums, err = listSection(ctx, e, result, progress, models.PassAlbums, e.source.SavedAlbums); err != nil {
		return nil, err
	}
	if lib.Liked, err = listSection(ctx, e, result, progress, models.PassLikedTracks, e.source.LikedTracks); err != nil {
		return nil, err
	}
	if lib.Playlists, err = listSection(ctx, e, result, progress, models.PassPlaylists, e.source.Playlists); err != nil {
		return nil, err
	}

	result.TotalPlaylists = len(lib.Playlists)
	result.Results = e.exportPlaylists(ctx, lib.Playlists, opts, progress)
	for _, res := range result.Results {
		if res.Success {
			result.SuccessfulExports++
		} else {
			result.FailedExports++
		}
	}
	for i, res := range result.Results {
		if res.Success {
			lib.Playlists[i].TrackCount = res.Tracks
		}
	}

	data, err := formatter.RenderLibrary(lib, opts.Format)
	if err != nil {
		return result, fmt.Errorf("failed to render library: %w", err)
	}
	if result.LibraryFile, err = formatter.WriteFile(opts.OutputDir, "library", opts.Format, data); err != nil {
		return result, err
	}

	manifest, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := os.WriteFile(manifestPath, manifest, 0644); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("export complete",
		"provider", result.Provider,
		"dir", result.OutputDirectory,
		"playlists", result.SuccessfulExports,
		"failed", result.FailedExports)
	sendProgress(progress, completeExportUpdate(result))
	return result, ctx.Err()
}

// listSection runs one listing. Capability errors mark the section skipped.
func listSection[T any](
	ctx context.Context,
	e *Exporter,
	result *ExportResult,
	progress chan<- ProgressUpdate,
	pass models.Pass,
	list func(context.Context) ([]T, error),
) ([]T, error) {
	sendProgress(progress, fetchingSourceUpdate(pass, e.source.Name()))

	items, err := list(ctx)
	if errors.Is(err, shared.ErrUnsupported) {
		e.logger.Warn("section not readable, skipping", "section", pass, "error", err)
		result.Skipped = append(result.Skipped, pass)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", pass, err)
	}

	sendProgress(progress, fetchedSourceUpdate(pass, len(items)))
	return items, nil
}

// exportPlaylists fans playlists out to a worker pool and returns results in listing order.
func (e *Exporter) exportPlaylists(
	ctx context.Context,
	playlists []models.Playlist,
	opts ExportOptions,
	progress chan<- ProgressUpdate,
) []PlaylistExportResult {
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	dir := filepath.Join(opts.OutputDir, "playlists")

	jobs := make(chan playlistJob, len(playlists))
	results := make(chan playlistJob, len(playlists))
	outcomes := make([]PlaylistExportResult, len(playlists))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				outcomes[job.index] = e.exportPlaylist(ctx, limiter, job.playlist, dir, opts.Format)
				results <- job
			}
		}()
	}

	for i, pl := range playlists {
		jobs <- playlistJob{index: i, playlist: pl}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for job := range results {
		completed++
		res := outcomes[job.index]
		if res.Success {
			sendProgress(progress, exportCompletedUpdate(completed, len(playlists), res))
		} else {
			e.logger.Error("playlist export failed", "playlist", res.PlaylistName, "error", res.Error)
			sendProgress(progress, exportFailedUpdate(completed, len(playlists), res))
		}
	}
	return outcomes
}

// exportPlaylist fetches one playlist's tracks and writes them to dir.
func (e *Exporter) exportPlaylist(
	ctx context.Context,
	limiter *rate.Limiter,
	pl models.Playlist,
	dir string,
	format formatter.Format,
) PlaylistExportResult {
	res := PlaylistExportResult{PlaylistID: pl.ID, PlaylistName: pl.Name}
	fail := func(err error) PlaylistExportResult {
		res.Error = err
		res.ErrorMessage = err.Error()
		return res
	}

	if err := limiter.Wait(ctx); err != nil {
		return fail(err)
	}

	tracks, err := e.source.PlaylistTracks(ctx, pl.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to fetch playlist: %w", err))
	}
	pl.Tracks = tracks

	path, err := formatter.WritePlaylistExport(pl, dir, format)
	if err != nil {
		return fail(err)
	}

	res.Tracks = len(tracks)
	res.Files = []string{path}
	res.Success = true
	return res
}
