package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/portable/internal/match"
	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
	tu "github.com/desertthunder/portable/internal/testing"
)

const fullCaps = services.CapRead | services.CapSearch | services.CapWriteLibrary | services.CapWritePlaylists

type memRecorder struct {
	started  []*models.Run
	items    []*models.RunItem
	finished []*models.Run
	err      error
}

func (r *memRecorder) StartRun(run *models.Run) error {
	run.SetID("run-1")
	r.started = append(r.started, run)
	return r.err
}

func (r *memRecorder) RecordItem(item *models.RunItem) error {
	r.items = append(r.items, item)
	return r.err
}

func (r *memRecorder) FinishRun(run *models.Run) error {
	r.finished = append(r.finished, run)
	return r.err
}

// catalog answers searches from a fixed name → id table, matching when the query mentions the name.
func catalog(entries map[models.Kind]map[string]string) func(string, models.Kind) []services.SearchItem {
	return func(q string, kind models.Kind) []services.SearchItem {
		var items []services.SearchItem
		for name, id := range entries[kind] {
			if strings.Contains(strings.ToLower(q), strings.ToLower(name)) {
				items = append(items, services.SearchItem{ID: id, Name: name, Type: "Album"})
			}
		}
		return items
	}
}

func outcomesOf(writes []TrackWrite) []models.Outcome {
	out := make([]models.Outcome, len(writes))
	for i, w := range writes {
		out[i] = w.Outcome
	}
	return out
}

func trackIDs(tracks []models.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

func radiohead() (*tu.FakeLibrary, *tu.FakeLibrary) {
	source := tu.NewFakeLibrary("youtube", services.CapRead|services.CapSearch|services.CapWritePlaylists)
	source.Artists = []models.Artist{{ID: "UC1", Name: "Radiohead"}}
	source.Albums = []models.Album{{ID: "MPRE1", Name: "OK Computer", Artists: models.NewArtists("Radiohead"), Type: "Album"}}
	source.Liked = []models.Track{{ID: "v1", Name: "Karma Police", Artists: models.NewArtists("Radiohead")}}
	source.Lists = []models.Playlist{{
		ID:   "PL1",
		Name: "Favorites",
		Tracks: []models.Track{
			{ID: "v2", Name: "Airbag", Artists: models.NewArtists("Radiohead")},
			{ID: "v3", Name: "Lucky", Artists: models.NewArtists("Radiohead")},
		},
	}}

	target := tu.NewFakeLibrary("spotify", fullCaps)
	target.Lists = []models.Playlist{{ID: "sp-fav", Name: "Favorites", Tracks: []models.Track{{ID: "sp-airbag", Name: "Airbag"}}}}
	target.SearchFunc = catalog(map[models.Kind]map[string]string{
		models.KindArtist: {"Radiohead": "sp-radiohead"},
		models.KindAlbum:  {"OK Computer": "sp-okc"},
		models.KindTrack:  {"Karma Police": "sp-karma", "Airbag": "sp-airbag", "Lucky": "sp-lucky"},
	})
	return source, target
}

func TestWriteGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("writes when absent", func(t *testing.T) {
		target := tu.NewFakeLibrary("spotify", fullCaps)
		g := NewWriteGuard(target, false)

		outcome, err := g.FollowArtist(ctx, models.Artist{ID: "a1"})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeWritten, outcome)
		assert.True(t, target.Followed["a1"])
		assert.Equal(t, 1, target.Calls["FollowsArtists"])
	})

	t.Run("skips when present", func(t *testing.T) {
		target := tu.NewFakeLibrary("spotify", fullCaps)
		target.Saved["al1"] = true
		target.LikedIDs["t1"] = true
		g := NewWriteGuard(target, false)

		outcome, err := g.SaveAlbum(ctx, models.Album{ID: "al1"})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeExists, outcome)

		outcome, err = g.LikeTrack(ctx, models.Track{ID: "t1"})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeExists, outcome)
		assert.Zero(t, target.Mutations())
	})

	t.Run("dry run never mutates", func(t *testing.T) {
		target := tu.NewFakeLibrary("spotify", fullCaps)
		g := NewWriteGuard(target, true)

		outcome, err := g.LikeTrack(ctx, models.Track{ID: "t1"})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeWritten, outcome)

		pl, created, err := g.EnsurePlaylist(ctx, models.Playlist{Name: "New"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Empty(t, pl.ID)

		writes, err := g.AddTracks(ctx, *pl, []models.Track{{ID: "t1"}})
		require.NoError(t, err)
		assert.Equal(t, []models.Outcome{models.OutcomeWritten}, outcomesOf(writes))
		assert.Zero(t, target.Mutations())
	})

	t.Run("check failure fails the item", func(t *testing.T) {
		target := tu.NewFakeLibrary("spotify", fullCaps)
		target.Errors["HasLikedTracks"] = shared.ErrRateLimited
		g := NewWriteGuard(target, false)

		outcome, err := g.LikeTrack(ctx, models.Track{ID: "t1"})
		assert.Equal(t, models.OutcomeFailed, outcome)
		assert.ErrorIs(t, err, shared.ErrRateLimited)
		assert.Zero(t, target.Calls["LikeTrack"])
	})

	t.Run("missing id fails", func(t *testing.T) {
		g := NewWriteGuard(tu.NewFakeLibrary("spotify", fullCaps), false)
		outcome, err := g.FollowArtist(ctx, models.Artist{Name: "Radiohead"})
		assert.Equal(t, models.OutcomeFailed, outcome)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("AddTracks dedupes against membership and itself", func(t *testing.T) {
		target := tu.NewFakeLibrary("spotify", fullCaps)
		target.Lists = []models.Playlist{{ID: "p1", Name: "Mix", Tracks: []models.Track{{ID: "t1"}}}}
		g := NewWriteGuard(target, false)
		pl := models.Playlist{ID: "p1", Name: "Mix"}

		writes, err := g.AddTracks(ctx, pl, []models.Track{{ID: "t1"}, {ID: "t2"}, {ID: "t2"}, {ID: "t3"}})
		require.NoError(t, err)
		assert.Equal(t, []models.Outcome{
			models.OutcomeExists, models.OutcomeWritten, models.OutcomeExists, models.OutcomeWritten,
		}, outcomesOf(writes))
		assert.Equal(t, 1, target.Calls["AddTracks"])
		assert.Len(t, target.Playlist("Mix").Tracks, 3)

		writes, err = g.AddTracks(ctx, pl, []models.Track{{ID: "t3"}})
		require.NoError(t, err)
		assert.Equal(t, []models.Outcome{models.OutcomeExists}, outcomesOf(writes))
		assert.Equal(t, 1, target.Calls["PlaylistTracks"], "membership is fetched once per playlist")
		assert.Equal(t, 1, target.Calls["AddTracks"])
	})

	t.Run("AddTracks failure marks pending tracks failed", func(t *testing.T) {
		target := tu.NewFakeLibrary("spotify", fullCaps)
		target.Lists = []models.Playlist{{ID: "p1", Name: "Mix", Tracks: []models.Track{{ID: "t1"}}}}
		target.Errors["AddTracks"] = shared.ErrAPIRequest
		g := NewWriteGuard(target, false)

		writes, err := g.AddTracks(ctx, models.Playlist{ID: "p1"}, []models.Track{{ID: "t1"}, {ID: "t2"}})
		require.NoError(t, err)
		assert.Equal(t, []models.Outcome{models.OutcomeExists, models.OutcomeFailed}, outcomesOf(writes))
		assert.ErrorIs(t, writes[1].Err, shared.ErrAPIRequest)
	})

	t.Run("AddTracks isolates a rejected track", func(t *testing.T) {
		target := tu.NewFakeLibrary("spotify", fullCaps)
		target.Lists = []models.Playlist{{ID: "p1", Name: "Mix"}}
		target.TrackErrors["bad"] = shared.ErrAPIRequest
		g := NewWriteGuard(target, false)
		pl := models.Playlist{ID: "p1", Name: "Mix"}

		writes, err := g.AddTracks(ctx, pl, []models.Track{{ID: "t1"}, {ID: "bad"}, {ID: "t2"}})
		require.NoError(t, err)
		assert.Equal(t, []models.Outcome{
			models.OutcomeWritten, models.OutcomeFailed, models.OutcomeWritten,
		}, outcomesOf(writes))
		assert.NoError(t, writes[0].Err)
		assert.ErrorIs(t, writes[1].Err, shared.ErrAPIRequest)
		assert.Equal(t, []string{"t1", "t2"}, trackIDs(target.Playlist("Mix").Tracks))
		assert.Equal(t, 4, target.Calls["AddTracks"], "one batch call then one call per track")

		writes, err = g.AddTracks(ctx, pl, []models.Track{{ID: "bad"}})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeFailed, writes[0].Outcome, "a failed track is not remembered as a member")
	})

	t.Run("AddTracks keeps earlier batches when a later one is rejected", func(t *testing.T) {
		target := tu.NewFakeLibrary("spotify", fullCaps)
		target.Lists = []models.Playlist{{ID: "p1", Name: "Mix"}}
		target.TrackErrors["t150"] = shared.ErrAPIRequest
		g := NewWriteGuard(target, false)

		tracks := make([]models.Track, 200)
		for i := range tracks {
			tracks[i] = models.Track{ID: fmt.Sprintf("t%d", i)}
		}

		writes, err := g.AddTracks(ctx, models.Playlist{ID: "p1"}, tracks)
		require.NoError(t, err)
		for i, w := range writes {
			if i == 150 {
				assert.Equal(t, models.OutcomeFailed, w.Outcome)
				continue
			}
			assert.Equal(t, models.OutcomeWritten, w.Outcome, "track %d", i)
		}
		assert.Len(t, target.Playlist("Mix").Tracks, 199)
		assert.Equal(t, 2+services.AddTracksBatch, target.Calls["AddTracks"])
	})
}

func TestMigrator(t *testing.T) {
	ctx := context.Background()

	t.Run("end to end", func(t *testing.T) {
		source, target := radiohead()
		rec := &memRecorder{}
		m := NewMigrator(source, target, nil).WithRecorder(rec)

		result, err := m.Run(ctx, Options{AlbumTypes: []string{"Album", "EP"}}, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, target.Calls["FollowArtist"])
		assert.Equal(t, 1, target.Calls["SaveAlbum"])
		assert.Equal(t, 1, target.Calls["LikeTrack"])
		assert.Equal(t, 1, target.Calls["AddTracks"])
		assert.Zero(t, target.Calls["CreatePlaylist"])

		fav := target.Playlist("Favorites")
		require.NotNil(t, fav)
		assert.Equal(t, []string{"sp-airbag", "sp-lucky"}, []string{fav.Tracks[0].ID, fav.Tracks[1].ID})

		assert.Equal(t, models.RunCompleted, result.Run.Status())
		assert.Equal(t, "run-1", result.Run.ID())
		assert.Equal(t, models.Tally{Written: 4, Existing: 2}, result.Tally)
		require.Len(t, result.Passes, 4)
		assert.Len(t, rec.items, 6)
		assert.Len(t, rec.finished, 1)
		for _, item := range rec.items {
			assert.Equal(t, "run-1", item.RunID())
		}
	})

	t.Run("rerun issues no mutations", func(t *testing.T) {
		source, target := radiohead()
		m := NewMigrator(source, target, nil)

		_, err := m.Run(ctx, Options{}, nil)
		require.NoError(t, err)
		before := target.Mutations()

		result, err := m.Run(ctx, Options{}, nil)
		require.NoError(t, err)
		assert.Equal(t, before, target.Mutations())
		assert.Zero(t, result.Tally.Written)
		assert.Equal(t, 6, result.Tally.Existing)
	})

	t.Run("each run starts with an empty cache", func(t *testing.T) {
		source, target := radiohead()
		m := NewMigrator(source, target, nil)

		_, err := m.Run(ctx, Options{Passes: []models.Pass{models.PassArtists}}, nil)
		require.NoError(t, err)
		_, err = m.Run(ctx, Options{Passes: []models.Pass{models.PassArtists}}, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, target.Calls["Search"])
	})

	t.Run("playlist is created when missing", func(t *testing.T) {
		source, target := radiohead()
		target.Lists = nil
		m := NewMigrator(source, target, nil)

		_, err := m.Run(ctx, Options{Passes: []models.Pass{models.PassPlaylists}}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, target.Calls["CreatePlaylist"])
		assert.Zero(t, target.Calls["PlaylistTracks"], "a new playlist is known to be empty")
		require.NotNil(t, target.Playlist("Favorites"))
		assert.Len(t, target.Playlist("Favorites").Tracks, 2)
	})

	t.Run("album types outside the allow-list are skipped", func(t *testing.T) {
		source, target := radiohead()
		source.Albums = append(source.Albums, models.Album{ID: "MPRE2", Name: "Creep", Artists: models.NewArtists("Radiohead"), Type: "Single"})
		m := NewMigrator(source, target, nil)

		result, err := m.Run(ctx, Options{Passes: []models.Pass{models.PassAlbums}, AlbumTypes: []string{"album", "ep"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, models.Tally{Written: 1, Skipped: 1}, result.Tally)
		assert.Equal(t, 1, target.Calls["SaveAlbum"])
	})

	t.Run("unresolved and failed items do not stop the pass", func(t *testing.T) {
		source, target := radiohead()
		source.Liked = []models.Track{
			{ID: "v9", Name: "Unknown Song", Artists: models.NewArtists("Nobody")},
			{ID: "v1", Name: "Karma Police", Artists: models.NewArtists("Radiohead")},
		}
		m := NewMigrator(source, target, nil)

		result, err := m.Run(ctx, Options{Passes: []models.Pass{models.PassLikedTracks}}, nil)
		require.NoError(t, err)
		assert.Equal(t, models.Tally{Written: 1, Unresolved: 1}, result.Tally)

		items := result.Items()
		require.Len(t, items, 2)
		assert.Equal(t, models.OutcomeUnresolved, items[0].Outcome())
		assert.Contains(t, items[0].Message(), "no match")
	})

	t.Run("a rejected playlist track does not fail its neighbours", func(t *testing.T) {
		source, target := radiohead()
		source.Lists[0].Tracks = []models.Track{
			{ID: "v3", Name: "Lucky", Artists: models.NewArtists("Radiohead")},
			{ID: "v8", Name: "Badtrack", Artists: models.NewArtists("Radiohead")},
		}
		target.SearchFunc = catalog(map[models.Kind]map[string]string{
			models.KindTrack: {"Lucky": "sp-lucky", "Badtrack": "sp-bad"},
		})
		target.TrackErrors["sp-bad"] = errors.New("invalid uri sp-bad")
		m := NewMigrator(source, target, nil)

		result, err := m.Run(ctx, Options{Passes: []models.Pass{models.PassPlaylists}}, nil)
		require.NoError(t, err)

		items := result.Items()
		require.Len(t, items, 3)
		assert.Equal(t, models.OutcomeExists, items[0].Outcome(), "playlist reused")
		assert.Equal(t, models.OutcomeWritten, items[1].Outcome())
		assert.Equal(t, models.OutcomeFailed, items[2].Outcome())
		assert.Contains(t, items[2].Message(), "invalid uri")
		assert.Equal(t, []string{"sp-airbag", "sp-lucky"}, trackIDs(target.Playlist("Favorites").Tracks))
	})

	t.Run("listing failure ends only that pass", func(t *testing.T) {
		source, target := radiohead()
		source.Errors["SubscribedArtists"] = shared.ErrServiceUnavailable
		m := NewMigrator(source, target, nil)

		result, err := m.Run(ctx, Options{Passes: []models.Pass{models.PassArtists, models.PassAlbums}}, nil)
		require.NoError(t, err)
		require.Len(t, result.Passes, 2)
		assert.Contains(t, result.Passes[0].Message, "failed to list artists")
		assert.False(t, result.Passes[0].Skipped)
		assert.Equal(t, 1, result.Passes[1].Tally.Written)
	})

	t.Run("passes the target cannot serve are skipped", func(t *testing.T) {
		source, target := radiohead()
		// youtube as a target only supports playlist writes
		m := NewMigrator(target, source, nil)

		result, err := m.Run(ctx, Options{}, nil)
		require.NoError(t, err)
		for _, p := range result.Passes[:3] {
			assert.True(t, p.Skipped, p.Pass)
		}
		assert.False(t, result.Passes[3].Skipped)
		assert.Zero(t, source.Calls["FollowArtist"]+source.Calls["SaveAlbum"]+source.Calls["LikeTrack"])
	})

	t.Run("capability errors on listing skip the pass", func(t *testing.T) {
		source, target := radiohead()
		source.Errors["LikedTracks"] = shared.Unsupported("youtube", "liked tracks")
		m := NewMigrator(source, target, nil)

		result, err := m.Run(ctx, Options{Passes: []models.Pass{models.PassLikedTracks}}, nil)
		require.NoError(t, err)
		assert.True(t, result.Passes[0].Skipped)
	})

	t.Run("limits cap each pass", func(t *testing.T) {
		source, target := radiohead()
		source.Artists = append(source.Artists, models.Artist{ID: "UC2", Name: "Portishead"})
		m := NewMigrator(source, target, nil)

		result, err := m.Run(ctx, Options{
			Passes: []models.Pass{models.PassArtists},
			Limits: map[models.Pass]int{models.PassArtists: 1},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Tally.Total())
	})

	t.Run("passes run in canonical order", func(t *testing.T) {
		source, target := radiohead()
		m := NewMigrator(source, target, nil)

		result, err := m.Run(ctx, Options{Passes: []models.Pass{models.PassPlaylists, models.PassArtists}}, nil)
		require.NoError(t, err)
		require.Len(t, result.Passes, 2)
		assert.Equal(t, models.PassArtists, result.Passes[0].Pass)
		assert.Equal(t, models.PassPlaylists, result.Passes[1].Pass)
	})

	t.Run("dry run", func(t *testing.T) {
		source, target := radiohead()
		target.Lists = nil
		m := NewMigrator(source, target, nil)

		result, err := m.Run(ctx, Options{DryRun: true}, nil)
		require.NoError(t, err)
		assert.Zero(t, target.Mutations())
		assert.Equal(t, 6, result.Tally.Written)
		assert.True(t, result.Run.DryRun())
	})

	t.Run("progress updates", func(t *testing.T) {
		source, target := radiohead()
		progress := make(chan ProgressUpdate, 100)
		m := NewMigrator(source, target, nil)

		_, err := m.Run(ctx, Options{}, progress)
		require.NoError(t, err)
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		require.NotEmpty(t, phases)
		assert.Equal(t, FetchSource, phases[0])
		assert.Equal(t, CompleteRun, phases[len(phases)-1])
	})

	t.Run("full progress channel never blocks", func(t *testing.T) {
		source, target := radiohead()
		progress := make(chan ProgressUpdate)
		m := NewMigrator(source, target, nil)

		_, err := m.Run(ctx, Options{}, progress)
		require.NoError(t, err)
	})

	t.Run("cancelled context fails the run", func(t *testing.T) {
		source, target := radiohead()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		result, err := NewMigrator(source, target, nil).Run(cctx, Options{}, nil)
		require.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, models.RunFailed, result.Run.Status())
		assert.Zero(t, target.Mutations())
	})

	t.Run("recorder failures do not stop the run", func(t *testing.T) {
		source, target := radiohead()
		rec := &memRecorder{err: errors.New("disk full")}

		result, err := NewMigrator(source, target, nil).WithRecorder(rec).Run(ctx, Options{}, nil)
		require.NoError(t, err)
		assert.Equal(t, models.RunCompleted, result.Run.Status())
	})
}

func TestOptionsFromConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := OptionsFromConfig(shared.DefaultConfig().Migrate)
		require.NoError(t, err)
		assert.Equal(t, models.AllPasses(), opts.selected())
		assert.Equal(t, []string{"Album", "EP"}, opts.AlbumTypes)
		assert.NotNil(t, opts.Scorer)
	})

	t.Run("bad pass", func(t *testing.T) {
		cfg := shared.DefaultConfig().Migrate
		cfg.Passes = []string{"podcasts"}
		_, err := OptionsFromConfig(cfg)
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})

	t.Run("bad scorer", func(t *testing.T) {
		cfg := shared.DefaultConfig().Migrate
		cfg.Scorer = "soundex"
		_, err := OptionsFromConfig(cfg)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("scorer is usable", func(t *testing.T) {
		opts, err := OptionsFromConfig(shared.DefaultConfig().Migrate)
		require.NoError(t, err)
		assert.InDelta(t, match.TokenSortRatio("a b", "b a"), opts.Scorer.Score("a b", "b a"), 1e-9)
	})
}
