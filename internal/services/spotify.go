// Spotify Web API implementation of [MusicLibrary]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	SpotifyName = "spotify"

	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPageSize     = 50
	spotifyPlaylistPage = 100
	spotifyAlbumCheck   = 20
	spotifySearchLimit  = 10
)

var spotifyScopes = []string{
	"user-read-private",
	"user-follow-read",
	"user-follow-modify",
	"user-library-read",
	"user-library-modify",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-private",
	"playlist-modify-public",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AlbumType   string          `json:"album_type"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   *SpotifyAlbum   `json:"album"`
	URI     string          `json:"uri"`
}

// SpotifyPlaylist represents a simplified playlist object.
type SpotifyPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type spotifySavedAlbum struct {
	Album SpotifyAlbum `json:"album"`
}

type spotifySavedTrack struct {
	Track *SpotifyTrack `json:"track"`
}

type spotifyFollowing struct {
	Artists struct {
		Items   []SpotifyArtist `json:"items"`
		Next    *string         `json:"next"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"artists"`
}

type spotifySearch struct {
	Artists   *spotifyPage[SpotifyArtist]    `json:"artists"`
	Albums    *spotifyPage[SpotifyAlbum]     `json:"albums"`
	Tracks    *spotifyPage[SpotifyTrack]     `json:"tracks"`
	Playlists *spotifyPage[*SpotifyPlaylist] `json:"playlists"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyOptions tunes a [SpotifyService].
type SpotifyOptions struct {
	BaseURL           string       // defaults to the public Web API
	HTTPClient        *http.Client // base transport for API and token requests
	RequestsPerSecond float64      // 0 disables pacing
}

// SpotifyService implements [MusicLibrary] for the Spotify Web API.
//
// Requests go through an [oauth2] client that refreshes the access token as needed.
type SpotifyService struct {
	config     *oauth2.Config
	tokens     oauth2.TokenSource
	baseClient *http.Client
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	userID     string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts SpotifyOptions) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       spotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		baseClient: opts.HTTPClient,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		limiter:    limiter,
	}, nil
}

// Authenticate installs a token. Accepts "access_token"/"refresh_token" or an "auth_code" to exchange.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)

	var token *oauth2.Token
	switch {
	case credentials["access_token"] != "" || credentials["refresh_token"] != "":
		token = &oauth2.Token{
			AccessToken:  credentials["access_token"],
			RefreshToken: credentials["refresh_token"],
		}
	case credentials["auth_code"] != "":
		exchanged, err := s.config.Exchange(ctx, credentials["auth_code"])
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		token = exchanged
	default:
		return fmt.Errorf("%w: run `portable auth spotify` first", shared.ErrNotAuthenticated)
	}

	s.SetToken(ctx, token)
	return nil
}

// SetToken replaces the token used for API requests.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
	s.tokens = s.config.TokenSource(ctx, token)
	s.httpClient = oauth2.NewClient(ctx, s.tokens)
}

// Token returns the current, possibly refreshed, token.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.tokens.Token()
}

func (s *SpotifyService) Name() string {
	return SpotifyName
}

func (s *SpotifyService) Capabilities() Capability {
	return CapRead | CapSearch | CapWriteLibrary | CapWritePlaylists
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration used for code exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs a paced, authenticated request against the Web API.
//
// body is JSON-encoded when non-nil; result is decoded from the response when non-nil.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.httpClient == nil {
		return shared.ErrNotAuthenticated
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return spotifyStatusError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func spotifyStatusError(resp *http.Response) error {
	var apiErr spotifyError
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: retry after %ss", shared.ErrRateLimited, resp.Header.Get("Retry-After"))
	default:
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// paginate fetches every offset-based page of endpoint until the API reports no next page.
func paginate[T any](ctx context.Context, s *SpotifyService, endpoint string, pageSize int) ([]T, error) {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}

	var all []T
	for offset := 0; ; offset += pageSize {
		var page spotifyPage[T]
		q := fmt.Sprintf("%s%slimit=%d&offset=%d", endpoint, sep, pageSize, offset)
		if err := s.doRequest(ctx, http.MethodGet, q, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.Next == nil || len(page.Items) == 0 {
			return all, nil
		}
	}
}

// SubscribedArtists returns followed artists, walking the cursor-paginated following endpoint.
func (s *SpotifyService) SubscribedArtists(ctx context.Context) ([]models.Artist, error) {
	var artists []models.Artist
	after := ""
	for {
		endpoint := fmt.Sprintf("/me/following?type=artist&limit=%d", spotifyPageSize)
		if after != "" {
			endpoint += "&after=" + url.QueryEscape(after)
		}

		var page spotifyFollowing
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, a := range page.Artists.Items {
			artists = append(artists, a.toModel())
		}

		after = page.Artists.Cursors.After
		if page.Artists.Next == nil || after == "" {
			return artists, nil
		}
	}
}

// SavedAlbums returns the user's saved albums.
func (s *SpotifyService) SavedAlbums(ctx context.Context) ([]models.Album, error) {
	items, err := paginate[spotifySavedAlbum](ctx, s, "/me/albums?market=from_token", spotifyPageSize)
	if err != nil {
		return nil, err
	}
	albums := make([]models.Album, 0, len(items))
	for _, item := range items {
		albums = append(albums, item.Album.toModel())
	}
	return albums, nil
}

// LikedTracks returns the user's saved tracks.
func (s *SpotifyService) LikedTracks(ctx context.Context) ([]models.Track, error) {
	items, err := paginate[spotifySavedTrack](ctx, s, "/me/tracks?market=from_token", spotifyPageSize)
	if err != nil {
		return nil, err
	}
	return savedTracks(items), nil
}

// Playlists returns the current user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	items, err := paginate[*SpotifyPlaylist](ctx, s, "/me/playlists", spotifyPageSize)
	if err != nil {
		return nil, err
	}
	playlists := make([]models.Playlist, 0, len(items))
	for _, p := range items {
		if p == nil {
			continue
		}
		playlists = append(playlists, p.toModel())
	}
	return playlists, nil
}

// PlaylistTracks returns every track of a playlist in order. Local files and removed tracks are dropped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?market=from_token", url.PathEscape(playlistID))
	items, err := paginate[spotifySavedTrack](ctx, s, endpoint, spotifyPlaylistPage)
	if err != nil {
		return nil, err
	}
	return savedTracks(items), nil
}

// FollowArtist follows artist.ID.
func (s *SpotifyService) FollowArtist(ctx context.Context, artist models.Artist) error {
	if artist.ID == "" {
		return fmt.Errorf("%w: artist id is required", shared.ErrInvalidInput)
	}
	return s.doRequest(ctx, http.MethodPut, "/me/following?type=artist", map[string][]string{"ids": {artist.ID}}, nil)
}

// SaveAlbum saves album.ID to the library.
func (s *SpotifyService) SaveAlbum(ctx context.Context, album models.Album) error {
	if album.ID == "" {
		return fmt.Errorf("%w: album id is required", shared.ErrInvalidInput)
	}
	return s.doRequest(ctx, http.MethodPut, "/me/albums", map[string][]string{"ids": {album.ID}}, nil)
}

// LikeTrack saves track.ID to liked songs.
func (s *SpotifyService) LikeTrack(ctx context.Context, track models.Track) error {
	if track.ID == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}
	return s.doRequest(ctx, http.MethodPut, "/me/tracks", map[string][]string{"ids": {track.ID}}, nil)
}

func (s *SpotifyService) contains(ctx context.Context, endpoint string, ids []string, batch int) ([]bool, error) {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}

	out := make([]bool, 0, len(ids))
	for _, part := range chunk(ids, batch) {
		var flags []bool
		q := endpoint + sep + "ids=" + url.QueryEscape(strings.Join(part, ","))
		if err := s.doRequest(ctx, http.MethodGet, q, nil, &flags); err != nil {
			return nil, err
		}
		if len(flags) != len(part) {
			return nil, fmt.Errorf("%w: expected %d membership flags, got %d", shared.ErrAPIRequest, len(part), len(flags))
		}
		out = append(out, flags...)
	}
	return out, nil
}

func (s *SpotifyService) FollowsArtists(ctx context.Context, ids []string) ([]bool, error) {
	return s.contains(ctx, "/me/following/contains?type=artist", ids, spotifyPageSize)
}

func (s *SpotifyService) HasSavedAlbums(ctx context.Context, ids []string) ([]bool, error) {
	return s.contains(ctx, "/me/albums/contains", ids, spotifyAlbumCheck)
}

func (s *SpotifyService) HasLikedTracks(ctx context.Context, ids []string) ([]bool, error) {
	return s.contains(ctx, "/me/tracks/contains", ids, spotifyPageSize)
}

// CreatePlaylist creates a playlist owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, error) {
	if s.userID == "" {
		user, err := s.UserProfile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve current user: %w", err)
		}
		s.userID = user.ID
	}

	body := map[string]any{
		"name":        playlist.Name,
		"public":      playlist.Public,
		"description": playlist.Description,
	}

	var created SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(s.userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	pl := created.toModel()
	return &pl, nil
}

// EnsurePlaylist reuses a playlist with the same name or creates it.
func (s *SpotifyService) EnsurePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, bool, error) {
	return EnsurePlaylist(ctx, s, playlist)
}

// AddTracks appends tracks to a playlist in order, at most [AddTracksBatch] per request.
//
// Batches are not atomic as a whole; callers needing per-track outcomes send at most
// [AddTracksBatch] tracks per call.
func (s *SpotifyService) AddTracks(ctx context.Context, playlist models.Playlist, tracks []models.Track) error {
	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			return fmt.Errorf("%w: track %q has no id", shared.ErrInvalidInput, t.Name)
		}
		uris = append(uris, "spotify:track:"+t.ID)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlist.ID))
	for _, part := range chunk(uris, AddTracksBatch) {
		if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"uris": part}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Search queries the catalog. query may use field filters such as track:"..." artist:"...".
func (s *SpotifyService) Search(ctx context.Context, query string, kind models.Kind) (*SearchResult, error) {
	if kind == "" {
		kind = models.KindTrack
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", string(kind))
	params.Set("limit", strconv.Itoa(spotifySearchLimit))

	var resp spotifySearch
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	result := &SearchResult{}
	switch kind {
	case models.KindArtist:
		if resp.Artists != nil {
			result.Total = resp.Artists.Total
			for _, a := range resp.Artists.Items {
				result.Items = append(result.Items, SearchItem{ID: a.ID, Name: a.Name, Type: "Artist"})
			}
		}
	case models.KindAlbum:
		if resp.Albums != nil {
			result.Total = resp.Albums.Total
			for _, a := range resp.Albums.Items {
				m := a.toModel()
				result.Items = append(result.Items, SearchItem{ID: m.ID, Name: m.Name, Artists: m.Artists, Type: m.Type, Year: m.Year})
			}
		}
	case models.KindTrack:
		if resp.Tracks != nil {
			result.Total = resp.Tracks.Total
			for _, t := range resp.Tracks.Items {
				m := t.toModel()
				result.Items = append(result.Items, SearchItem{ID: m.ID, Name: m.Name, Artists: m.Artists, Album: m.AlbumName(), Type: "Song"})
			}
		}
	case models.KindPlaylist:
		if resp.Playlists != nil {
			result.Total = resp.Playlists.Total
			for _, p := range resp.Playlists.Items {
				if p != nil {
					result.Items = append(result.Items, SearchItem{ID: p.ID, Name: p.Name, Type: "Playlist"})
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: search kind %q", shared.ErrInvalidArgument, kind)
	}

	return result, nil
}

func savedTracks(items []spotifySavedTrack) []models.Track {
	tracks := make([]models.Track, 0, len(items))
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" {
			continue
		}
		tracks = append(tracks, item.Track.toModel())
	}
	return tracks
}

func (a SpotifyArtist) toModel() models.Artist {
	return models.Artist{ID: a.ID, Name: a.Name}
}

func spotifyArtists(in []SpotifyArtist) []models.Artist {
	out := make([]models.Artist, 0, len(in))
	for _, a := range in {
		out = append(out, a.toModel())
	}
	return out
}

func (a SpotifyAlbum) toModel() models.Album {
	album := models.Album{
		ID:      a.ID,
		Name:    a.Name,
		Artists: spotifyArtists(a.Artists),
		Type:    spotifyAlbumType(a.AlbumType),
	}
	if len(a.ReleaseDate) >= 4 {
		album.Year, _ = strconv.Atoi(a.ReleaseDate[:4])
	}
	return album
}

// spotifyAlbumType maps album_type ("album", "single", "compilation") onto the shared type tags.
func spotifyAlbumType(t string) string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(t[:1]) + strings.ToLower(t[1:])
}

func (t SpotifyTrack) toModel() models.Track {
	track := models.Track{
		ID:      t.ID,
		Name:    t.Name,
		Artists: spotifyArtists(t.Artists),
	}
	if t.Album != nil {
		album := t.Album.toModel()
		track.Album = &album
	}
	return track
}

func (p SpotifyPlaylist) toModel() models.Playlist {
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Public:      p.Public,
		TrackCount:  p.Tracks.Total,
	}
}
