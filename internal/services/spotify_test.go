package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/portable/internal/models"
	"github.com/desertthunder/portable/internal/shared"
	"golang.org/x/oauth2"
)

func newTestSpotify(t *testing.T, handler http.HandlerFunc) *SpotifyService {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	}, SpotifyOptions{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	svc.SetToken(context.Background(), &oauth2.Token{AccessToken: "test-token"})
	return svc
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}, SpotifyOptions{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "spotify" {
				t.Errorf("expected service name 'spotify', got %s", srv.Name())
			}

			if srv.GetOAuthConfig().RedirectURL != "http://127.0.0.1:3000/callback" {
				t.Errorf("unexpected default redirect URI %s", srv.GetOAuthConfig().RedirectURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "s"}, SpotifyOptions{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "c"}, SpotifyOptions{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("GetAuthURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(map[string]string{"client_id": "abc", "client_secret": "s"}, SpotifyOptions{})
		authURL := srv.GetAuthURL("state-123")

		for _, want := range []string{"accounts.spotify.com", "client_id=abc", "state=state-123", "user-follow-modify", "playlist-modify-private"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("expected auth URL to contain %q, got %s", want, authURL)
			}
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("with access token", func(t *testing.T) {
			srv, _ := NewSpotifyService(map[string]string{"client_id": "c", "client_secret": "s"}, SpotifyOptions{})
			if err := srv.Authenticate(context.Background(), map[string]string{"access_token": "tok"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			token, err := srv.Token()
			if err != nil || token.AccessToken != "tok" {
				t.Errorf("expected stored token, got %v (%v)", token, err)
			}
		})

		t.Run("missing credentials", func(t *testing.T) {
			srv, _ := NewSpotifyService(map[string]string{"client_id": "c", "client_secret": "s"}, SpotifyOptions{})
			if err := srv.Authenticate(context.Background(), map[string]string{}); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("requests fail before authentication", func(t *testing.T) {
			srv, _ := NewSpotifyService(map[string]string{"client_id": "c", "client_secret": "s"}, SpotifyOptions{})
			if _, err := srv.Playlists(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("Capabilities", func(t *testing.T) {
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {})
		if !srv.Capabilities().Has(CapRead | CapSearch | CapWriteLibrary | CapWritePlaylists) {
			t.Errorf("expected full capability set, got %s", srv.Capabilities())
		}
	})

	t.Run("sends bearer token", func(t *testing.T) {
		var auth string
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			writeJSON(t, w, SpotifyUser{ID: "u1"})
		})

		if _, err := srv.UserProfile(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if auth != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", auth)
		}
	})

	t.Run("Playlists paginates in order", func(t *testing.T) {
		requests := 0
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			requests++
			if r.URL.Path != "/me/playlists" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}

			next := "next"
			switch r.URL.Query().Get("offset") {
			case "0":
				writeJSON(t, w, map[string]any{
					"items": []map[string]any{
						{"id": "p1", "name": "First", "public": true, "tracks": map[string]int{"total": 3}},
						nil,
					},
					"next": next,
				})
			case "50":
				writeJSON(t, w, map[string]any{
					"items": []map[string]any{{"id": "p2", "name": "Second"}},
					"next":  nil,
				})
			default:
				t.Errorf("unexpected offset %s", r.URL.Query().Get("offset"))
			}
		})

		playlists, err := srv.Playlists(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if requests != 2 {
			t.Errorf("expected 2 page requests, got %d", requests)
		}
		if len(playlists) != 2 || playlists[0].ID != "p1" || playlists[1].ID != "p2" {
			t.Fatalf("unexpected playlists: %+v", playlists)
		}
		if !playlists[0].Public || playlists[0].TrackCount != 3 {
			t.Errorf("unexpected metadata: %+v", playlists[0])
		}
		if playlists[0].Tracks != nil {
			t.Error("listing should not include tracks")
		}
	})

	t.Run("SubscribedArtists follows cursors", func(t *testing.T) {
		var afters []string
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			after := r.URL.Query().Get("after")
			afters = append(afters, after)
			if r.URL.Query().Get("type") != "artist" {
				t.Errorf("expected type=artist, got %s", r.URL.RawQuery)
			}

			if after == "" {
				writeJSON(t, w, map[string]any{"artists": map[string]any{
					"items":   []SpotifyArtist{{ID: "a1", Name: "Radiohead"}},
					"next":    "more",
					"cursors": map[string]string{"after": "a1"},
				}})
				return
			}
			writeJSON(t, w, map[string]any{"artists": map[string]any{
				"items":   []SpotifyArtist{{ID: "a2", Name: "Portishead"}},
				"next":    nil,
				"cursors": map[string]any{"after": nil},
			}})
		})

		artists, err := srv.SubscribedArtists(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(artists) != 2 || artists[1].Name != "Portishead" {
			t.Errorf("unexpected artists: %+v", artists)
		}
		if len(afters) != 2 || afters[1] != "a1" {
			t.Errorf("expected second request after=a1, got %v", afters)
		}
	})

	t.Run("SavedAlbums maps album type and year", func(t *testing.T) {
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{{"album": map[string]any{
					"id":           "al1",
					"name":         "OK Computer",
					"album_type":   "album",
					"release_date": "1997-05-21",
					"artists":      []SpotifyArtist{{ID: "a1", Name: "Radiohead"}},
				}}},
			})
		})

		albums, err := srv.SavedAlbums(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(albums) != 1 {
			t.Fatalf("expected 1 album, got %d", len(albums))
		}
		got := albums[0]
		if got.Type != "Album" || got.Year != 1997 || got.PrimaryArtist().Name != "Radiohead" {
			t.Errorf("unexpected album: %+v", got)
		}
	})

	t.Run("PlaylistTracks drops missing tracks", func(t *testing.T) {
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/pl1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "100" {
				t.Errorf("expected page size 100, got %s", r.URL.Query().Get("limit"))
			}
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"track": map[string]any{"id": "t1", "name": "Airbag", "artists": []SpotifyArtist{{Name: "Radiohead"}}}},
					{"track": nil},
					{"track": map[string]any{"id": "t2", "name": "Paranoid Android"}},
				},
			})
		})

		tracks, err := srv.PlaylistTracks(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 || tracks[0].ID != "t1" || tracks[1].ID != "t2" {
			t.Errorf("unexpected tracks: %+v", tracks)
		}
	})

	t.Run("writes send ids in the body", func(t *testing.T) {
		tc := []struct {
			name  string
			path  string
			write func(*SpotifyService) error
		}{
			{"FollowArtist", "/me/following", func(s *SpotifyService) error {
				return s.FollowArtist(context.Background(), models.Artist{ID: "x1", Name: "Radiohead"})
			}},
			{"SaveAlbum", "/me/albums", func(s *SpotifyService) error {
				return s.SaveAlbum(context.Background(), models.Album{ID: "x1", Name: "OK Computer"})
			}},
			{"LikeTrack", "/me/tracks", func(s *SpotifyService) error {
				return s.LikeTrack(context.Background(), models.Track{ID: "x1", Name: "Airbag"})
			}},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				var body map[string][]string
				srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
					if r.Method != http.MethodPut || r.URL.Path != tt.path {
						t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
					}
					if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
						t.Errorf("failed to decode body: %v", err)
					}
					w.WriteHeader(http.StatusNoContent)
				})

				if err := tt.write(srv); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(body["ids"]) != 1 || body["ids"][0] != "x1" {
					t.Errorf("unexpected body %v", body)
				}
			})
		}

		t.Run("missing id", func(t *testing.T) {
			srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			})
			if err := srv.FollowArtist(context.Background(), models.Artist{Name: "Radiohead"}); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("HasSavedAlbums batches by 20", func(t *testing.T) {
		var sizes []int
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			ids := strings.Split(r.URL.Query().Get("ids"), ",")
			sizes = append(sizes, len(ids))
			flags := make([]bool, len(ids))
			for i, id := range ids {
				flags[i] = id == "id3"
			}
			writeJSON(t, w, flags)
		})

		ids := make([]string, 25)
		for i := range ids {
			ids[i] = fmt.Sprintf("id%d", i)
		}

		flags, err := srv.HasSavedAlbums(context.Background(), ids)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sizes) != 2 || sizes[0] != 20 || sizes[1] != 5 {
			t.Errorf("expected batches of 20 and 5, got %v", sizes)
		}
		if len(flags) != 25 || !flags[3] || flags[4] {
			t.Errorf("unexpected flags %v", flags)
		}
	})

	t.Run("FollowsArtists rejects short responses", func(t *testing.T) {
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/following/contains" || r.URL.Query().Get("type") != "artist" {
				t.Errorf("unexpected request %s", r.URL.String())
			}
			writeJSON(t, w, []bool{true})
		})

		if _, err := srv.FollowsArtists(context.Background(), []string{"a", "b"}); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("CreatePlaylist resolves the user once", func(t *testing.T) {
		meCalls := 0
		var created []map[string]any
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/me":
				meCalls++
				writeJSON(t, w, SpotifyUser{ID: "user1"})
			case r.Method == http.MethodPost && r.URL.Path == "/users/user1/playlists":
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				created = append(created, body)
				writeJSON(t, w, map[string]any{"id": fmt.Sprintf("new%d", len(created)), "name": body["name"], "public": body["public"]})
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
		})

		pl, err := srv.CreatePlaylist(context.Background(), models.Playlist{Name: "Favorites", Public: true, Description: "d"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pl.ID != "new1" || pl.Name != "Favorites" || !pl.Public {
			t.Errorf("unexpected playlist %+v", pl)
		}
		if _, err := srv.CreatePlaylist(context.Background(), models.Playlist{Name: "Other"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if meCalls != 1 {
			t.Errorf("expected 1 profile request, got %d", meCalls)
		}
		if created[0]["description"] != "d" || created[0]["public"] != true {
			t.Errorf("unexpected create body %v", created[0])
		}
	})

	t.Run("AddTracks chunks by 100 in order", func(t *testing.T) {
		var batches [][]string
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/playlists/pl1/tracks" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body struct {
				URIs []string `json:"uris"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			batches = append(batches, body.URIs)
			w.WriteHeader(http.StatusCreated)
			writeJSON(t, w, map[string]string{"snapshot_id": "s"})
		})

		tracks := make([]models.Track, 150)
		for i := range tracks {
			tracks[i] = models.Track{ID: fmt.Sprintf("t%d", i)}
		}

		if err := srv.AddTracks(context.Background(), models.Playlist{ID: "pl1"}, tracks); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(batches) != 2 || len(batches[0]) != 100 || len(batches[1]) != 50 {
			t.Fatalf("unexpected batches: %d", len(batches))
		}
		if batches[0][0] != "spotify:track:t0" || batches[1][49] != "spotify:track:t149" {
			t.Errorf("unexpected ordering: %s ... %s", batches[0][0], batches[1][49])
		}
	})

	t.Run("Search", func(t *testing.T) {
		var query, kind string
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query().Get("q")
			kind = r.URL.Query().Get("type")
			writeJSON(t, w, map[string]any{"tracks": map[string]any{
				"total": 42,
				"items": []map[string]any{
					{"id": "t1", "name": "Karma Police", "artists": []SpotifyArtist{{ID: "a1", Name: "Radiohead"}}, "album": map[string]any{"name": "OK Computer"}},
					{"id": "t2", "name": "Karma Police - Live"},
				},
			}})
		})

		result, err := srv.Search(context.Background(), `track:"Karma Police" artist:"Radiohead"`, models.KindTrack)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if query != `track:"Karma Police" artist:"Radiohead"` || kind != "track" {
			t.Errorf("unexpected query %q type %q", query, kind)
		}
		if result.Total != 42 || len(result.Items) != 2 {
			t.Fatalf("unexpected result %+v", result)
		}
		if result.Items[0].Album != "OK Computer" || result.Items[0].Artists[0].Name != "Radiohead" {
			t.Errorf("unexpected first item %+v", result.Items[0])
		}
	})

	t.Run("Search rejects unknown kinds", func(t *testing.T) {
		srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{})
		})
		if _, err := srv.Search(context.Background(), "x", models.Kind("podcast")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Error Handling", func(t *testing.T) {
		tc := []struct {
			name   string
			status int
			want   error
		}{
			{"401 maps to token expired", http.StatusUnauthorized, shared.ErrTokenExpired},
			{"429 maps to rate limited", http.StatusTooManyRequests, shared.ErrRateLimited},
			{"404 maps to API request", http.StatusNotFound, shared.ErrAPIRequest},
			{"500 maps to API request", http.StatusInternalServerError, shared.ErrAPIRequest},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				srv := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Retry-After", "3")
					w.WriteHeader(tt.status)
					writeJSON(t, w, map[string]any{"error": map[string]any{"status": tt.status, "message": "nope"}})
				})

				_, err := srv.LikedTracks(context.Background())
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}
