package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
)

// WriteGuard applies target mutations only when the target does not already hold the entity.
//
// Every write is preceded by a membership check. In dry-run mode the checks still run but
// nothing is mutated; would-be writes report [models.OutcomeWritten].
type WriteGuard struct {
	target  services.MusicLibrary
	dryRun  bool
	members map[string]map[string]bool
}

// NewWriteGuard returns a guard writing to target.
func NewWriteGuard(target services.MusicLibrary, dryRun bool) *WriteGuard {
	return &WriteGuard{
		target:  target,
		dryRun:  dryRun,
		members: make(map[string]map[string]bool),
	}
}

// DryRun reports whether mutations are suppressed.
func (g *WriteGuard) DryRun() bool {
	return g.dryRun
}

type membershipCheck func(ctx context.Context, ids []string) ([]bool, error)

func (g *WriteGuard) apply(ctx context.Context, id string, check membershipCheck, write func(context.Context) error) (models.Outcome, error) {
	if id == "" {
		return models.OutcomeFailed, fmt.Errorf("%w: resolved entity has no id", shared.ErrInvalidInput)
	}

	flags, err := check(ctx, []string{id})
	if err != nil {
		return models.OutcomeFailed, fmt.Errorf("membership check: %w", err)
	}
	if len(flags) > 0 && flags[0] {
		return models.OutcomeExists, nil
	}
	if g.dryRun {
		return models.OutcomeWritten, nil
	}
	if err := write(ctx); err != nil {
		return models.OutcomeFailed, err
	}
	return models.OutcomeWritten, nil
}

// FollowArtist follows artist unless the target already follows it.
func (g *WriteGuard) FollowArtist(ctx context.Context, artist models.Artist) (models.Outcome, error) {
	return g.apply(ctx, artist.ID, g.target.FollowsArtists, func(ctx context.Context) error {
		return g.target.FollowArtist(ctx, artist)
	})
}

// SaveAlbum saves album unless it is already in the target library.
func (g *WriteGuard) SaveAlbum(ctx context.Context, album models.Album) (models.Outcome, error) {
	return g.apply(ctx, album.ID, g.target.HasSavedAlbums, func(ctx context.Context) error {
		return g.target.SaveAlbum(ctx, album)
	})
}

// LikeTrack likes track unless it is already liked.
func (g *WriteGuard) LikeTrack(ctx context.Context, track models.Track) (models.Outcome, error) {
	return g.apply(ctx, track.ID, g.target.HasLikedTracks, func(ctx context.Context) error {
		return g.target.LikeTrack(ctx, track)
	})
}

// EnsurePlaylist returns the target playlist named like want, creating it when absent.
//
// A dry run never creates; a missing playlist comes back without an id and with empty membership.
func (g *WriteGuard) EnsurePlaylist(ctx context.Context, want models.Playlist) (*models.Playlist, bool, error) {
	if !g.dryRun {
		return g.target.EnsurePlaylist(ctx, want)
	}

	playlists, err := g.target.Playlists(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list playlists: %w", err)
	}
	if existing := services.FindPlaylist(playlists, want.Name); existing != nil {
		return existing, false, nil
	}
	return &models.Playlist{Name: want.Name, Description: want.Description, Public: want.Public}, true, nil
}

// membership returns the memoized track id set of playlist, fetching it on first use.
func (g *WriteGuard) membership(ctx context.Context, playlist models.Playlist) (map[string]bool, error) {
	key := playlist.ID
	if key == "" {
		key = "name:" + playlist.Name
	}
	if set, ok := g.members[key]; ok {
		return set, nil
	}

	set := make(map[string]bool)
	if playlist.ID != "" {
		tracks, err := g.target.PlaylistTracks(ctx, playlist.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playlist tracks: %w", err)
		}
		for _, t := range tracks {
			set[t.ID] = true
		}
	}
	g.members[key] = set
	return set, nil
}

// TrackWrite is the outcome of appending one track to a playlist.
type TrackWrite struct {
	Outcome models.Outcome
	Err     error
}

// AddTracks appends the tracks playlist does not already contain, in order. The returned
// writes align with tracks.
//
// Duplicates within tracks are reported as existing. Tracks are sent in batches of
// [services.AddTracksBatch]; a rejected batch is retried one track at a time so a bad track
// fails alone. Failed tracks are removed from the membership set. The error is non-nil only
// when the current membership could not be fetched.
func (g *WriteGuard) AddTracks(ctx context.Context, playlist models.Playlist, tracks []models.Track) ([]TrackWrite, error) {
	writes := make([]TrackWrite, len(tracks))

	set, err := g.membership(ctx, playlist)
	if err != nil {
		for i := range writes {
			writes[i] = TrackWrite{Outcome: models.OutcomeFailed, Err: err}
		}
		return writes, err
	}

	var pending []int
	for i, t := range tracks {
		switch {
		case t.ID == "":
			writes[i] = TrackWrite{
				Outcome: models.OutcomeFailed,
				Err:     fmt.Errorf("%w: resolved track has no id", shared.ErrInvalidInput),
			}
		case set[t.ID]:
			writes[i].Outcome = models.OutcomeExists
		default:
			set[t.ID] = true
			pending = append(pending, i)
			writes[i].Outcome = models.OutcomeWritten
		}
	}

	if g.dryRun {
		return writes, nil
	}
	for start := 0; start < len(pending); start += services.AddTracksBatch {
		end := min(start+services.AddTracksBatch, len(pending))
		g.addBatch(ctx, playlist, tracks, pending[start:end], writes, set)
	}
	return writes, nil
}

// addBatch sends the tracks at indexes in one call, splitting a rejected batch into
// single-track calls.
func (g *WriteGuard) addBatch(
	ctx context.Context,
	playlist models.Playlist,
	tracks []models.Track,
	indexes []int,
	writes []TrackWrite,
	set map[string]bool,
) {
	batch := make([]models.Track, len(indexes))
	for k, i := range indexes {
		batch[k] = tracks[i]
	}

	err := g.target.AddTracks(ctx, playlist, batch)
	if err == nil {
		return
	}
	if len(indexes) > 1 && ctx.Err() == nil {
		for _, i := range indexes {
			g.addBatch(ctx, playlist, tracks, []int{i}, writes, set)
		}
		return
	}
	for _, i := range indexes {
		writes[i] = TrackWrite{Outcome: models.OutcomeFailed, Err: err}
		delete(set, tracks[i].ID)
	}
}
