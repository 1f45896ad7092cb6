// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/services"
	"github.com/desertthunder/portable/internal/shared"
)

// FakeLibrary is an in-memory [services.MusicLibrary] that counts every call.
//
// Operations outside Caps fail with a [shared.CapabilityError] like the real adapters.
type FakeLibrary struct {
	ProviderName string
	Caps         services.Capability

	Artists []models.Artist
	Albums  []models.Album
	Liked   []models.Track
	Lists   []models.Playlist

	Followed map[string]bool
	Saved    map[string]bool
	LikedIDs map[string]bool

	// SearchFunc answers Search. A nil func returns no items.
	SearchFunc func(query string, kind models.Kind) []services.SearchItem

	// Errors forces the named method to fail.
	Errors map[string]error

	// PlaylistErrors forces PlaylistTracks to fail for one playlist id.
	PlaylistErrors map[string]error

	// TrackErrors rejects any AddTracks call whose batch holds one of these track ids.
	TrackErrors map[string]error

	Calls   map[string]int
	Queries []string
	nextID  int
	mu      sync.Mutex
}

// NewFakeLibrary returns an empty library advertising caps.
func NewFakeLibrary(name string, caps services.Capability) *FakeLibrary {
	return &FakeLibrary{
		ProviderName:   name,
		Caps:           caps,
		Followed:       map[string]bool{},
		Saved:          map[string]bool{},
		LikedIDs:       map[string]bool{},
		Errors:         map[string]error{},
		PlaylistErrors: map[string]error{},
		TrackErrors:    map[string]error{},
		Calls:          map[string]int{},
	}
}

// Mutations is the number of calls that changed the library.
func (f *FakeLibrary) Mutations() int {
	return f.Calls["FollowArtist"] + f.Calls["SaveAlbum"] + f.Calls["LikeTrack"] +
		f.Calls["CreatePlaylist"] + f.Calls["AddTracks"]
}

// Playlist returns the stored playlist named name, including its tracks.
func (f *FakeLibrary) Playlist(name string) *models.Playlist {
	for i := range f.Lists {
		if f.Lists[i].Name == name {
			return &f.Lists[i]
		}
	}
	return nil
}

func (f *FakeLibrary) call(name string, need services.Capability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[name]++
	if !f.Caps.Has(need) {
		return shared.Unsupported(f.ProviderName, name)
	}
	return f.Errors[name]
}

func (f *FakeLibrary) Name() string                      { return f.ProviderName }
func (f *FakeLibrary) Capabilities() services.Capability { return f.Caps }

func (f *FakeLibrary) SubscribedArtists(context.Context) ([]models.Artist, error) {
	if err := f.call("SubscribedArtists", services.CapRead); err != nil {
		return nil, err
	}
	return f.Artists, nil
}

func (f *FakeLibrary) SavedAlbums(context.Context) ([]models.Album, error) {
	if err := f.call("SavedAlbums", services.CapRead); err != nil {
		return nil, err
	}
	return f.Albums, nil
}

func (f *FakeLibrary) LikedTracks(context.Context) ([]models.Track, error) {
	if err := f.call("LikedTracks", services.CapRead); err != nil {
		return nil, err
	}
	return f.Liked, nil
}

func (f *FakeLibrary) Playlists(context.Context) ([]models.Playlist, error) {
	if err := f.call("Playlists", services.CapRead); err != nil {
		return nil, err
	}
	out := make([]models.Playlist, 0, len(f.Lists))
	for _, pl := range f.Lists {
		pl.TrackCount = len(pl.Tracks)
		pl.Tracks = nil
		out = append(out, pl)
	}
	return out, nil
}

func (f *FakeLibrary) PlaylistTracks(_ context.Context, playlistID string) ([]models.Track, error) {
	if err := f.call("PlaylistTracks", services.CapRead); err != nil {
		return nil, err
	}
	if err := f.PlaylistErrors[playlistID]; err != nil {
		return nil, err
	}
	for _, pl := range f.Lists {
		if pl.ID == playlistID {
			return append([]models.Track(nil), pl.Tracks...), nil
		}
	}
	return nil, fmt.Errorf("%w: playlist %s not found", shared.ErrAPIRequest, playlistID)
}

func (f *FakeLibrary) FollowArtist(_ context.Context, artist models.Artist) error {
	if err := f.call("FollowArtist", services.CapWriteLibrary); err != nil {
		return err
	}
	f.Followed[artist.ID] = true
	return nil
}

func (f *FakeLibrary) SaveAlbum(_ context.Context, album models.Album) error {
	if err := f.call("SaveAlbum", services.CapWriteLibrary); err != nil {
		return err
	}
	f.Saved[album.ID] = true
	return nil
}

func (f *FakeLibrary) LikeTrack(_ context.Context, track models.Track) error {
	if err := f.call("LikeTrack", services.CapWriteLibrary); err != nil {
		return err
	}
	f.LikedIDs[track.ID] = true
	return nil
}

func membership(set map[string]bool, ids []string) []bool {
	out := make([]bool, len(ids))
	for i, id := range ids {
		out[i] = set[id]
	}
	return out
}

func (f *FakeLibrary) FollowsArtists(_ context.Context, ids []string) ([]bool, error) {
	if err := f.call("FollowsArtists", services.CapWriteLibrary); err != nil {
		return nil, err
	}
	return membership(f.Followed, ids), nil
}

func (f *FakeLibrary) HasSavedAlbums(_ context.Context, ids []string) ([]bool, error) {
	if err := f.call("HasSavedAlbums", services.CapWriteLibrary); err != nil {
		return nil, err
	}
	return membership(f.Saved, ids), nil
}

func (f *FakeLibrary) HasLikedTracks(_ context.Context, ids []string) ([]bool, error) {
	if err := f.call("HasLikedTracks", services.CapWriteLibrary); err != nil {
		return nil, err
	}
	return membership(f.LikedIDs, ids), nil
}

func (f *FakeLibrary) CreatePlaylist(_ context.Context, playlist models.Playlist) (*models.Playlist, error) {
	if err := f.call("CreatePlaylist", services.CapWritePlaylists); err != nil {
		return nil, err
	}
	f.nextID++
	pl := models.Playlist{
		ID:          fmt.Sprintf("%s-pl-%d", f.ProviderName, f.nextID),
		Name:        playlist.Name,
		Description: playlist.Description,
		Public:      playlist.Public,
	}
	f.Lists = append(f.Lists, pl)
	return &pl, nil
}

func (f *FakeLibrary) EnsurePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, bool, error) {
	return services.EnsurePlaylist(ctx, f, playlist)
}

func (f *FakeLibrary) AddTracks(_ context.Context, playlist models.Playlist, tracks []models.Track) error {
	if err := f.call("AddTracks", services.CapWritePlaylists); err != nil {
		return err
	}
	for _, t := range tracks {
		if err := f.TrackErrors[t.ID]; err != nil {
			return err
		}
	}
	for i := range f.Lists {
		if f.Lists[i].ID == playlist.ID {
			f.Lists[i].Tracks = append(f.Lists[i].Tracks, tracks...)
			return nil
		}
	}
	return fmt.Errorf("%w: playlist %s not found", shared.ErrAPIRequest, playlist.ID)
}

func (f *FakeLibrary) Search(_ context.Context, query string, kind models.Kind) (*services.SearchResult, error) {
	if err := f.call("Search", services.CapSearch); err != nil {
		return nil, err
	}
	f.Queries = append(f.Queries, query)
	if f.SearchFunc == nil {
		return &services.SearchResult{}, nil
	}
	items := f.SearchFunc(query, kind)
	return &services.SearchResult{Total: len(items), Items: items}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
