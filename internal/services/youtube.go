// YouTube Music implementation of [MusicLibrary]
//
// Communicates with the proxy server wrapping the ytmusicapi Python library.
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
)

const (
	YouTubeName = "youtube"

	defaultYTBaseURL string = "http://127.0.0.1:8080"

	// youtubeListLimit is passed as ?limit= on every listing. ytmusicapi truncates
	// library listings to 25 or 100 entries unless a limit is given.
	youtubeListLimit = 10000
)

// listing appends the listing limit to endpoint.
func listing(endpoint string) string {
	return endpoint + "?limit=" + strconv.Itoa(youtubeListLimit)
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeArtists decodes the "artists" field, which the proxy emits either as a list or as a single object.
type YouTubeArtists []YouTubeArtist

func (a *YouTubeArtists) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = nil
		return nil
	case data[0] == '{':
		var one YouTubeArtist
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*a = YouTubeArtists{one}
		return nil
	default:
		var many []YouTubeArtist
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*a = many
		return nil
	}
}

func (a YouTubeArtists) toModel() []models.Artist {
	out := make([]models.Artist, 0, len(a))
	for _, artist := range a {
		if artist.Name == "" {
			continue
		}
		out = append(out, models.Artist{ID: artist.ID, Name: artist.Name})
	}
	return out
}

// flexInt decodes numbers the proxy sometimes sends as strings ("1997", "25 songs").
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	fields := strings.Fields(strings.ReplaceAll(s, ",", ""))
	if len(fields) == 0 {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID string         `json:"videoId"`
	Title   string         `json:"title"`
	Artists YouTubeArtists `json:"artists"`
	Album   *youtubeAlbum  `json:"album"`
}

// YouTubeAlbum represents a library album.
type YouTubeAlbum struct {
	BrowseID string         `json:"browseId"`
	Title    string         `json:"title"`
	Type     string         `json:"type"`
	Artists  YouTubeArtists `json:"artists"`
	Year     flexInt        `json:"year"`
}

// YouTubeSubscription represents a subscribed artist.
type YouTubeSubscription struct {
	BrowseID string `json:"browseId"`
	Artist   string `json:"artist"`
}

// YouTubePlaylist represents a playlist from YouTube Music.
type YouTubePlaylist struct {
	PlaylistID  string         `json:"playlistId"`
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Privacy     string         `json:"privacy"`
	Count       flexInt        `json:"count"`
	TrackCount  flexInt        `json:"trackCount"`
	Tracks      []YouTubeTrack `json:"tracks,omitempty"`
}

// YouTubeSearchResult is one entry of a proxy search response.
type YouTubeSearchResult struct {
	ResultType string         `json:"resultType"`
	VideoID    string         `json:"videoId"`
	BrowseID   string         `json:"browseId"`
	PlaylistID string         `json:"playlistId"`
	Title      string         `json:"title"`
	Artist     string         `json:"artist"`
	Artists    YouTubeArtists `json:"artists"`
	Album      *youtubeAlbum  `json:"album"`
	Type       string         `json:"type"`
	Year       flexInt        `json:"year"`
}

// BrowserSetupResponse is returned by the proxy after converting raw browser headers into an auth file.
type BrowserSetupResponse struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	AuthContent map[string]any `json:"auth_content"`
}

// YouTubeService implements [MusicLibrary] for YouTube Music via proxy.
//
// Reading, searching and playlist writes are supported. Follow, save and like are not exposed by the proxy.
type YouTubeService struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string, client *http.Client) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &YouTubeService{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

func (y *YouTubeService) Name() string {
	return YouTubeName
}

func (y *YouTubeService) Capabilities() Capability {
	return CapRead | CapSearch | CapWritePlaylists
}

// Authenticate stores the authentication file path for subsequent requests.
//
// Expects credentials["auth_file"] to contain the path to browser.json or oauth.json.
func (y *YouTubeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	authFile := credentials["auth_file"]
	if authFile == "" {
		return fmt.Errorf("%w: missing youtube headers_path, run `portable setup youtube` first", shared.ErrMissingCredentials)
	}

	y.authFile = authFile
	return nil
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrServiceUnavailable, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Detail == "" {
			errResp.Detail = http.StatusText(resp.StatusCode)
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, errResp.Detail)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", shared.ErrRateLimited, errResp.Detail)
		default:
			return fmt.Errorf("%w: youtube music status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// SubscribedArtists calls GET /api/library/subscriptions with the listing limit.
func (y *YouTubeService) SubscribedArtists(ctx context.Context) ([]models.Artist, error) {
	var subs []YouTubeSubscription
	if err := y.doRequest(ctx, http.MethodGet, listing("/api/library/subscriptions"), nil, &subs); err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(subs))
	for _, s := range subs {
		if s.Artist == "" {
			continue
		}
		artists = append(artists, models.Artist{ID: s.BrowseID, Name: s.Artist})
	}
	return artists, nil
}

// SavedAlbums calls GET /api/library/albums with the listing limit.
func (y *YouTubeService) SavedAlbums(ctx context.Context) ([]models.Album, error) {
	var items []YouTubeAlbum
	if err := y.doRequest(ctx, http.MethodGet, listing("/api/library/albums"), nil, &items); err != nil {
		return nil, err
	}

	albums := make([]models.Album, 0, len(items))
	for _, a := range items {
		albums = append(albums, models.Album{
			ID:      a.BrowseID,
			Name:    a.Title,
			Artists: a.Artists.toModel(),
			Type:    a.Type,
			Year:    int(a.Year),
		})
	}
	return albums, nil
}

// LikedTracks calls GET /api/library/liked-songs with the listing limit.
func (y *YouTubeService) LikedTracks(ctx context.Context) ([]models.Track, error) {
	var liked struct {
		Tracks []YouTubeTrack `json:"tracks"`
	}
	if err := y.doRequest(ctx, http.MethodGet, listing("/api/library/liked-songs"), nil, &liked); err != nil {
		return nil, err
	}
	return youtubeTracks(liked.Tracks), nil
}

// Playlists calls GET /api/library/playlists with the listing limit.
func (y *YouTubeService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var items []YouTubePlaylist
	if err := y.doRequest(ctx, http.MethodGet, listing("/api/library/playlists"), nil, &items); err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(items))
	for _, p := range items {
		playlists = append(playlists, p.toModel())
	}
	return playlists, nil
}

// PlaylistTracks calls GET /api/playlists/{id} with the listing limit.
func (y *YouTubeService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var pl YouTubePlaylist
	endpoint := fmt.Sprintf("/api/playlists/%s", url.PathEscape(playlistID))
	if err := y.doRequest(ctx, http.MethodGet, listing(endpoint), nil, &pl); err != nil {
		return nil, err
	}
	return youtubeTracks(pl.Tracks), nil
}

func (y *YouTubeService) FollowArtist(context.Context, models.Artist) error {
	return shared.Unsupported(YouTubeName, "follow artist")
}

func (y *YouTubeService) SaveAlbum(context.Context, models.Album) error {
	return shared.Unsupported(YouTubeName, "save album")
}

func (y *YouTubeService) LikeTrack(context.Context, models.Track) error {
	return shared.Unsupported(YouTubeName, "like track")
}

func (y *YouTubeService) FollowsArtists(context.Context, []string) ([]bool, error) {
	return nil, shared.Unsupported(YouTubeName, "artist membership check")
}

func (y *YouTubeService) HasSavedAlbums(context.Context, []string) ([]bool, error) {
	return nil, shared.Unsupported(YouTubeName, "album membership check")
}

func (y *YouTubeService) HasLikedTracks(context.Context, []string) ([]bool, error) {
	return nil, shared.Unsupported(YouTubeName, "liked track membership check")
}

// CreatePlaylist calls POST /api/playlists.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, error) {
	privacy := "PRIVATE"
	if playlist.Public {
		privacy = "PUBLIC"
	}

	req := map[string]string{
		"title":          playlist.Name,
		"description":    playlist.Description,
		"privacy_status": privacy,
	}

	var resp struct {
		PlaylistID string `json:"playlist_id"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/api/playlists", req, &resp); err != nil {
		return nil, err
	}
	if resp.PlaylistID == "" {
		return nil, fmt.Errorf("%w: proxy returned no playlist id", shared.ErrAPIRequest)
	}

	return &models.Playlist{
		ID:          resp.PlaylistID,
		Name:        playlist.Name,
		Description: playlist.Description,
		Public:      playlist.Public,
	}, nil
}

// EnsurePlaylist reuses a playlist with the same name or creates it.
func (y *YouTubeService) EnsurePlaylist(ctx context.Context, playlist models.Playlist) (*models.Playlist, bool, error) {
	return EnsurePlaylist(ctx, y, playlist)
}

// AddTracks calls POST /api/playlists/{id}/items with the video ids in order.
func (y *YouTubeService) AddTracks(ctx context.Context, playlist models.Playlist, tracks []models.Track) error {
	videoIDs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			return fmt.Errorf("%w: track %q has no id", shared.ErrInvalidInput, t.Name)
		}
		videoIDs = append(videoIDs, t.ID)
	}

	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlist.ID))
	return y.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"video_ids": videoIDs}, nil)
}

var youtubeFilters = map[models.Kind]string{
	models.KindArtist:   "artists",
	models.KindAlbum:    "albums",
	models.KindTrack:    "songs",
	models.KindPlaylist: "playlists",
}

// Search calls GET /api/search?q={query}&filter={songs|artists|albums|playlists}.
func (y *YouTubeService) Search(ctx context.Context, query string, kind models.Kind) (*SearchResult, error) {
	if kind == "" {
		kind = models.KindTrack
	}
	filter, ok := youtubeFilters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: search kind %q", shared.ErrInvalidArgument, kind)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("filter", filter)

	var results []YouTubeSearchResult
	if err := y.doRequest(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &results); err != nil {
		return nil, err
	}

	out := &SearchResult{Total: len(results), Items: make([]SearchItem, 0, len(results))}
	for _, r := range results {
		item := SearchItem{
			Name:    r.Title,
			Artists: r.Artists.toModel(),
			Type:    r.Type,
			Year:    int(r.Year),
		}
		switch kind {
		case models.KindArtist:
			item.ID = r.BrowseID
			if r.Artist != "" {
				item.Name = r.Artist
			}
		case models.KindAlbum:
			item.ID = r.BrowseID
		case models.KindTrack:
			item.ID = r.VideoID
		case models.KindPlaylist:
			item.ID = r.PlaylistID
			if item.ID == "" {
				item.ID = r.BrowseID
			}
		}
		if r.Album != nil {
			item.Album = r.Album.Name
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

// SetupBrowser posts raw browser headers to the proxy, which returns the auth file content.
func (y *YouTubeService) SetupBrowser(ctx context.Context, headersRaw string) (*BrowserSetupResponse, error) {
	var resp BrowserSetupResponse
	if err := y.doRequest(ctx, http.MethodPost, "/api/setup/browser", map[string]string{"headers_raw": headersRaw}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health calls GET /health and reports whether the proxy is reachable and authenticated.
func (y *YouTubeService) Health(ctx context.Context) (map[string]any, error) {
	var health map[string]any
	if err := y.doRequest(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return health, nil
}

func youtubeTracks(items []YouTubeTrack) []models.Track {
	tracks := make([]models.Track, 0, len(items))
	for _, t := range items {
		if t.VideoID == "" {
			continue
		}
		track := models.Track{
			ID:      t.VideoID,
			Name:    t.Title,
			Artists: t.Artists.toModel(),
		}
		if t.Album != nil && t.Album.Name != "" {
			track.Album = &models.Album{ID: t.Album.ID, Name: t.Album.Name, Artists: track.Artists}
		}
		tracks = append(tracks, track)
	}
	return tracks
}

func (p YouTubePlaylist) toModel() models.Playlist {
	id := p.PlaylistID
	if id == "" {
		id = p.ID
	}
	count := int(p.Count)
	if count == 0 {
		count = int(p.TrackCount)
	}
	return models.Playlist{
		ID:          id,
		Name:        p.Title,
		Description: p.Description,
		Public:      strings.EqualFold(p.Privacy, "PUBLIC"),
		TrackCount:  count,
	}
}
