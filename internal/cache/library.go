package cache

import (
	"context"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
)

// Library decorates a [services.MusicLibrary] with a per-run [Store].
type Library struct {
	services.MusicLibrary
	store *Store
}

// Wrap returns lib backed by store.
func Wrap(lib services.MusicLibrary, store *Store) *Library {
	return &Library{MusicLibrary: lib, store: store}
}

// Store returns the backing store.
func (l *Library) Store() *Store {
	return l.store
}

// Search answers repeated (kind, query) pairs from the store. Errors are not memoized.
func (l *Library) Search(ctx context.Context, query string, kind models.Kind) (*services.SearchResult, error) {
	if result, ok := l.store.Search(kind, query); ok {
		return result, nil
	}

	result, err := l.MusicLibrary.Search(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	l.store.PutSearch(kind, query, result)
	return result, nil
}

// Playlists lists the provider's playlists once per run.
func (l *Library) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if playlists, ok := l.store.Playlists(); ok {
		return playlists, nil
	}

	playlists, err := l.MusicLibrary.Playlists(ctx)
	if err != nil {
		return nil, err
	}
	l.store.PutPlaylists(playlists)
	return playlists, nil
}

// PlaylistTracks fetches a playlist's membership once per run.
func (l *Library) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if tracks, ok := l.store.PlaylistTracks(playlistID); ok {
		return tracks, nil
	}

	tracks, err := l.MusicLibrary.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	l.store.PutPlaylistTracks(playlistID, tracks)
	return tracks, nil
}

// CreatePlaylist creates the playlist and records it in the memoized listing.
func (l *Library) CreatePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, error) {
	created, err := l.MusicLibrary.CreatePlaylist(ctx, playlist)
	if err != nil {
		return nil, err
	}
	l.store.AddPlaylist(*created)
	return created, nil
}

// EnsurePlaylist finds or creates a playlist through the memoized listing.
func (l *Library) EnsurePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, bool, error) {
	return services.EnsurePlaylist(ctx, l, playlist)
}

// AddTracks appends tracks and extends the memoized membership on success.
func (l *Library) AddTracks(ctx context.Context, playlist models.Playlist, tracks []models.Track) error {
	if err := l.MusicLibrary.AddTracks(ctx, playlist, tracks); err != nil {
		return err
	}
	l.store.AppendPlaylistTracks(playlist.ID, tracks)
	return nil
}
