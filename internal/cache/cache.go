// Package cache memoizes catalog lookups for the lifetime of a single migration run.
//
// A [Store] is created at the start of a run and dropped when it ends; nothing is persisted.
// [Library] wraps a [services.MusicLibrary] so searches, playlist listings and playlist
// membership are fetched at most once. Library membership checks (follows, saves, likes)
// always go to the provider.
package cache

import (
	"sync"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
)

// Stats counts cache lookups.
type Stats struct {
	Hits   int `json:"hits" yaml:"hits"`
	Misses int `json:"misses" yaml:"misses"`
}

// Store holds memoized catalog responses for one run.
type Store struct {
	mu        sync.Mutex
	searches  map[string]*services.SearchResult
	playlists []models.Playlist
	listed    bool
	members   map[string][]models.Track
	stats     Stats
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		searches: make(map[string]*services.SearchResult),
		members:  make(map[string][]models.Track),
	}
}

func searchKey(kind models.Kind, query string) string {
	return shared.NormalizeKey(string(kind), query)
}

// Search returns the memoized result for kind and query.
func (s *Store) Search(kind models.Kind, query string) (*services.SearchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.searches[searchKey(kind, query)]
	s.record(ok)
	return result, ok
}

// PutSearch memoizes result for kind and query.
func (s *Store) PutSearch(kind models.Kind, query string, result *services.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches[searchKey(kind, query)] = result
}

// Playlists returns a copy of the memoized playlist listing.
func (s *Store) Playlists() ([]models.Playlist, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(s.listed)
	if !s.listed {
		return nil, false
	}
	return append([]models.Playlist(nil), s.playlists...), true
}

// PutPlaylists memoizes the playlist listing.
func (s *Store) PutPlaylists(playlists []models.Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists = append([]models.Playlist(nil), playlists...)
	s.listed = true
}

// AddPlaylist appends a newly created playlist to the memoized listing, if one was loaded,
// and records its membership as empty.
func (s *Store) AddPlaylist(pl models.Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listed {
		s.playlists = append(s.playlists, pl)
	}
	s.members[pl.ID] = []models.Track{}
}

// PlaylistTracks returns a copy of the memoized membership of playlistID.
func (s *Store) PlaylistTracks(playlistID string) ([]models.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracks, ok := s.members[playlistID]
	s.record(ok)
	if !ok {
		return nil, false
	}
	return append([]models.Track(nil), tracks...), true
}

// PutPlaylistTracks memoizes the membership of playlistID.
func (s *Store) PutPlaylistTracks(playlistID string, tracks []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[playlistID] = append([]models.Track(nil), tracks...)
}

// AppendPlaylistTracks extends memoized membership after a successful add.
// Unknown playlists are left unloaded.
func (s *Store) AppendPlaylistTracks(playlistID string, tracks []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.members[playlistID]; ok {
		s.members[playlistID] = append(existing, tracks...)
	}
}

// Stats returns the lookup counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Store) record(hit bool) {
	if hit {
		s.stats.Hits++
	} else {
		s.stats.Misses++
	}
}
