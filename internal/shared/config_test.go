package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./portable.db" {
			t.Errorf("expected database path ./portable.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.YouTube.ProxyURL != "http://127.0.0.1:8080" {
			t.Errorf("expected youtube proxy URL http://127.0.0.1:8080, got %s", config.Credentials.YouTube.ProxyURL)
		}

		if config.Migrate.Source != "youtube" || config.Migrate.Target != "spotify" {
			t.Errorf("expected youtube -> spotify, got %s -> %s", config.Migrate.Source, config.Migrate.Target)
		}

		if len(config.Migrate.Passes) != 4 {
			t.Errorf("expected 4 default passes, got %v", config.Migrate.Passes)
		}

		if len(config.Migrate.AlbumTypes) != 2 || config.Migrate.AlbumTypes[0] != "Album" || config.Migrate.AlbumTypes[1] != "EP" {
			t.Errorf("expected album types [Album EP], got %v", config.Migrate.AlbumTypes)
		}

		if config.Migrate.Scorer != "token_sort" {
			t.Errorf("expected token_sort scorer, got %s", config.Migrate.Scorer)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `log_level = "debug"

[database]
path = "/custom/path.db"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[migrate]
source = "spotify"
target = "youtube"
passes = ["playlists"]

[migrate.limits]
playlists = 3
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.LogLevel != "debug" {
			t.Errorf("expected log level debug, got %s", config.LogLevel)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("missing keys should keep defaults, got port %d", config.Server.Port)
		}

		if config.Migrate.Limits.Playlists != 3 {
			t.Errorf("expected playlist limit 3, got %d", config.Migrate.Limits.Playlists)
		}

		if config.Migrate.Scorer != "token_sort" {
			t.Errorf("expected default scorer to survive partial config, got %s", config.Migrate.Scorer)
		}
	})

	t.Run("LoadConfig errors", func(t *testing.T) {
		tmpDir := t.TempDir()

		if _, err := LoadConfig(filepath.Join(tmpDir, "missing.toml")); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}

		bad := filepath.Join(tmpDir, "bad.toml")
		if err := os.WriteFile(bad, []byte("[database\npath ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(bad); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadOrDefault", func(t *testing.T) {
		config, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Database.Path != "./portable.db" {
			t.Errorf("expected defaults, got %s", config.Database.Path)
		}
	})

	t.Run("SaveConfig round trips tokens", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		err := config.Credentials.Spotify.Update(&oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       expiry,
		})
		if err != nil {
			t.Fatalf("failed to update token: %v", err)
		}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil {
			t.Fatal("expected a stored token")
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token: %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
	})
}

func TestSpotifyConfig(t *testing.T) {
	t.Run("Token is nil without credentials", func(t *testing.T) {
		var sc SpotifyConfig
		if sc.Token() != nil {
			t.Error("expected nil token")
		}
	})

	t.Run("Update keeps refresh token", func(t *testing.T) {
		sc := SpotifyConfig{AccessToken: "old", RefreshToken: "keep"}
		if err := sc.Update(&oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sc.AccessToken != "new" || sc.RefreshToken != "keep" {
			t.Errorf("unexpected credentials: %+v", sc)
		}
	})

	t.Run("Update rejects empty token", func(t *testing.T) {
		var sc SpotifyConfig
		if err := sc.Update(&oauth2.Token{}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Map", func(t *testing.T) {
		sc := SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1:3000/callback"}
		m := sc.Map()
		if m["client_id"] != "id" || m["client_secret"] != "secret" || m["redirect_uri"] != sc.RedirectURI {
			t.Errorf("unexpected map: %v", m)
		}
	})
}
