package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/portable/internal/formatter"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
	tu "github.com/desertthunder/portable/internal/testing"
)

func exportSource() *tu.FakeLibrary {
	source, _ := radiohead()
	source.Lists = append(source.Lists,
		models.Playlist{ID: "PL2", Name: "Road Trip", Tracks: []models.Track{{ID: "v4", Name: "Bloom", Artists: models.NewArtists("Radiohead")}}},
		models.Playlist{ID: "PL3", Name: "Empty"},
	)
	return source
}

func TestExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("writes library, playlists and manifest", func(t *testing.T) {
		dir := t.TempDir()
		source := exportSource()

		result, err := NewExporter(source, nil).Export(ctx, ExportOptions{
			Format:     formatter.FormatCSV,
			OutputDir:  dir,
			NumWorkers: 3,
			RateLimit:  1000,
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, "youtube", result.Provider)
		assert.Equal(t, 3, result.TotalPlaylists)
		assert.Equal(t, 3, result.SuccessfulExports)
		assert.Zero(t, result.FailedExports)
		assert.Equal(t, 3, source.Calls["PlaylistTracks"])

		require.Len(t, result.Results, 3)
		assert.Equal(t, "PL1", result.Results[0].PlaylistID, "results keep listing order")
		assert.Equal(t, 2, result.Results[0].Tracks)
		assert.Equal(t, "PL3", result.Results[2].PlaylistID)
		assert.Zero(t, result.Results[2].Tracks)

		tu.AssertFileExists(t, filepath.Join(dir, "library.csv"))
		tu.AssertFileExists(t, filepath.Join(dir, "playlists", "PL1.csv"))
		tu.AssertFileExists(t, filepath.Join(dir, "playlists", "PL2.csv"))
		assert.Contains(t, tu.MustReadFile(t, filepath.Join(dir, "playlists", "PL1.csv")), "Lucky")
		assert.Contains(t, tu.MustReadFile(t, result.LibraryFile), "album,MPRE1,OK Computer,Radiohead,")

		assert.Equal(t, filepath.Join(dir, "export_manifest.json"), result.ManifestPath)
		var manifest struct {
			Provider          string `json:"provider"`
			SuccessfulExports int    `json:"successful_exports"`
			Results           []struct {
				PlaylistName string `json:"playlist_name"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal([]byte(tu.MustReadFile(t, result.ManifestPath)), &manifest))
		assert.Equal(t, "youtube", manifest.Provider)
		assert.Equal(t, 3, manifest.SuccessfulExports)
		assert.Equal(t, "Favorites", manifest.Results[0].PlaylistName)
	})

	t.Run("isolates playlist failures", func(t *testing.T) {
		dir := t.TempDir()
		source := exportSource()
		source.PlaylistErrors["PL2"] = shared.ErrRateLimited

		result, err := NewExporter(source, nil).Export(ctx, ExportOptions{OutputDir: dir, RateLimit: 1000}, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, result.SuccessfulExports)
		assert.Equal(t, 1, result.FailedExports)
		failed := result.Results[1]
		assert.False(t, failed.Success)
		assert.ErrorIs(t, failed.Error, shared.ErrRateLimited)
		assert.Contains(t, failed.ErrorMessage, "rate limited")

		_, statErr := os.Stat(filepath.Join(dir, "playlists", "PL2.json"))
		assert.True(t, os.IsNotExist(statErr))
		tu.AssertFileExists(t, filepath.Join(dir, "library.json"))
	})

	t.Run("skips unreadable sections", func(t *testing.T) {
		source := exportSource()
		source.Errors["LikedTracks"] = shared.Unsupported("youtube", "liked tracks")

		result, err := NewExporter(source, nil).Export(ctx, ExportOptions{OutputDir: t.TempDir(), RateLimit: 1000}, nil)
		require.NoError(t, err)
		assert.Equal(t, []models.Pass{models.PassLikedTracks}, result.Skipped)
		assert.Equal(t, 3, result.SuccessfulExports)
	})

	t.Run("listing failure aborts", func(t *testing.T) {
		source := exportSource()
		source.Errors["SavedAlbums"] = shared.ErrAPIRequest

		result, err := NewExporter(source, nil).Export(ctx, ExportOptions{OutputDir: t.TempDir()}, nil)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Zero(t, source.Calls["PlaylistTracks"])
	})

	t.Run("source without read capability exports an empty library", func(t *testing.T) {
		source := tu.NewFakeLibrary("blind", services.CapSearch)

		result, err := NewExporter(source, nil).Export(ctx, ExportOptions{OutputDir: t.TempDir()}, nil)
		require.NoError(t, err)
		assert.Len(t, result.Skipped, 4)
		assert.Zero(t, result.TotalPlaylists)
	})

	t.Run("cancelled context fails remaining playlists", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		result, err := NewExporter(exportSource(), nil).Export(cancelled, ExportOptions{OutputDir: t.TempDir()}, nil)
		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, result)
		assert.Equal(t, 3, result.FailedExports)
		assert.True(t, errors.Is(result.Results[0].Error, context.Canceled))
	})

	t.Run("sends progress", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 64)

		_, err := NewExporter(exportSource(), nil).Export(ctx, ExportOptions{OutputDir: t.TempDir(), RateLimit: 1000}, progress)
		require.NoError(t, err)
		close(progress)

		var exported int
		var last ProgressUpdate
		for u := range progress {
			if u.Phase == ExportPlaylist {
				exported++
			}
			last = u
		}
		assert.Equal(t, 3, exported)
		assert.Equal(t, CompleteExport, last.Phase)
	})

	t.Run("nil source", func(t *testing.T) {
		_, err := NewExporter(nil, nil).Export(ctx, ExportOptions{}, nil)
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})
}
