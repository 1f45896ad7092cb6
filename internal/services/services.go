// package services defines the [MusicLibrary] contract for streaming catalogs
//
// Spotify (Web API), YouTube Music (via proxy)
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/shared"
	"golang.org/x/oauth2"
)

// Capability is a bit set of the operation groups a provider implements.
type Capability uint8

const (
	CapRead           Capability = 1 << iota // enumerate library contents
	CapSearch                                // catalog search
	CapWriteLibrary                          // follow, save, like and membership checks
	CapWritePlaylists                        // create playlists and append tracks
)

// AddTracksBatch is the most tracks a single playlist append request carries.
const AddTracksBatch = 100

// Has reports whether every bit of other is set in c.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	var parts []string
	for _, p := range []struct {
		bit  Capability
		name string
	}{
		{CapRead, "read"},
		{CapSearch, "search"},
		{CapWriteLibrary, "write-library"},
		{CapWritePlaylists, "write-playlists"},
	} {
		if c.Has(p.bit) {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// SearchItem is one raw search hit in provider order.
type SearchItem struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []models.Artist `json:"artists,omitempty"`
	Album   string          `json:"album,omitempty"`
	Type    string          `json:"type,omitempty"`
	Year    int             `json:"year,omitempty"`
}

// SearchResult is the response of a catalog search.
type SearchResult struct {
	Total int          `json:"total"`
	Items []SearchItem `json:"items"`
}

// LibraryReader enumerates a user's library. Listings are fully paginated.
type LibraryReader interface {
	SubscribedArtists(ctx context.Context) ([]models.Artist, error)
	SavedAlbums(ctx context.Context) ([]models.Album, error)
	LikedTracks(ctx context.Context) ([]models.Track, error)

	// Playlists returns playlist metadata in page order; Tracks is left nil.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistTracks returns the ordered membership of a playlist.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// LibraryWriter mutates a user's library. Arguments carry the provider's own ids.
type LibraryWriter interface {
	FollowArtist(ctx context.Context, artist models.Artist) error
	SaveAlbum(ctx context.Context, album models.Album) error
	LikeTrack(ctx context.Context, track models.Track) error

	// FollowsArtists, HasSavedAlbums and HasLikedTracks report membership for each id, in order.
	FollowsArtists(ctx context.Context, ids []string) ([]bool, error)
	HasSavedAlbums(ctx context.Context, ids []string) ([]bool, error)
	HasLikedTracks(ctx context.Context, ids []string) ([]bool, error)

	CreatePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, error)
	AddTracks(ctx context.Context, playlist models.Playlist, tracks []models.Track) error
}

// Searcher queries a provider's catalog.
type Searcher interface {
	Search(ctx context.Context, query string, kind models.Kind) (*SearchResult, error)
}

// PlaylistStore is the subset of a library needed to find or create playlists.
type PlaylistStore interface {
	Playlists(ctx context.Context) ([]models.Playlist, error)
	CreatePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, error)
}

// MusicLibrary is the contract every catalog provider implements.
//
// Operations outside the provider's [Capability] set fail with a [shared.CapabilityError].
type MusicLibrary interface {
	Name() string
	Capabilities() Capability

	LibraryReader
	LibraryWriter
	Searcher

	// EnsurePlaylist returns the playlist named exactly playlist.Name, creating it when absent.
	// created reports whether a new playlist was made.
	EnsurePlaylist(ctx context.Context, playlist models.Playlist) (pl *models.Playlist, created bool, err error)
}

// OAuthService is implemented by providers that authorize through the OAuth2 code flow.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
}

// EnsurePlaylist finds a playlist whose name equals want.Name in store, or creates one
// with want's name, visibility and description.
func EnsurePlaylist(ctx context.Context, store PlaylistStore, want models.Playlist) (*models.Playlist, bool, error) {
	playlists, err := store.Playlists(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list playlists: %w", err)
	}

	if existing := FindPlaylist(playlists, want.Name); existing != nil {
		return existing, false, nil
	}

	created, err := store.CreatePlaylist(ctx, models.Playlist{
		Name:        want.Name,
		Description: want.Description,
		Public:      want.Public,
	})
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// FindPlaylist returns the first playlist named exactly name, or nil.
func FindPlaylist(playlists []models.Playlist, name string) *models.Playlist {
	for i := range playlists {
		if playlists[i].Name == name {
			pl := playlists[i]
			return &pl
		}
	}
	return nil
}

// Options configures provider construction in [New].
type Options struct {
	HTTPClient        *http.Client
	RequestsPerSecond float64
}

// New builds the provider registered under name from configuration.
//
// Construction failures (unknown provider, missing credentials) are the only errors that abort a run.
func New(ctx context.Context, name string, cfg *shared.Config, opts Options) (MusicLibrary, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SpotifyName:
		svc, err := NewSpotifyService(cfg.Credentials.Spotify.Map(), SpotifyOptions{
			HTTPClient:        opts.HTTPClient,
			RequestsPerSecond: opts.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		token := cfg.Credentials.Spotify.Token()
		if token == nil {
			return nil, fmt.Errorf("%w: no spotify token, run `portable auth spotify` first", shared.ErrNotAuthenticated)
		}
		svc.SetToken(ctx, token)
		return svc, nil
	case YouTubeName, "ytmusic", "youtube-music":
		svc := NewYouTubeService(cfg.Credentials.YouTube.ProxyURL, opts.HTTPClient)
		if err := svc.Authenticate(ctx, map[string]string{"auth_file": cfg.Credentials.YouTube.HeadersPath}); err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownProvider, name)
	}
}

func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
