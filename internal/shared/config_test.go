package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./tapedeck.db" {
			t.Errorf("expected database path ./tapedeck.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Library.SongsDir != "songs" || config.Library.ArtDir != "album-art" {
			t.Errorf("unexpected library layout %+v", config.Library)
		}

		if config.Pipeline.CacheTTL.Duration != 30*time.Minute {
			t.Errorf("expected cache ttl 30m, got %v", config.Pipeline.CacheTTL)
		}

		if config.Pipeline.SampleRate != 44100 || config.Pipeline.Channels != 2 || config.Pipeline.Bitrate != "192k" {
			t.Errorf("unexpected transcode defaults %+v", config.Pipeline)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
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

	t.Run("LoadConfig keeps defaults for missing keys", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[pipeline]
transcode = true
cache_ttl = "5s"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if !config.Pipeline.Transcode {
			t.Error("expected transcode to be enabled")
		}
		if config.Pipeline.CacheTTL.Duration != 5*time.Second {
			t.Errorf("expected cache ttl 5s, got %v", config.Pipeline.CacheTTL)
		}
		if config.Library.Catalog != "playlists.json" {
			t.Errorf("expected default catalog path, got %s", config.Library.Catalog)
		}
	})

	t.Run("LoadConfig rejects bad duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[pipeline]\ncache_ttl = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("SaveConfig round trips tokens", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

		if err := config.Credentials.Spotify.Update(&oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: expiry}); err != nil {
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
			t.Fatal("expected token after reload")
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" || !token.Expiry.Equal(expiry) {
			t.Errorf("unexpected token %+v", token)
		}
	})

	t.Run("Update rejects empty token", func(t *testing.T) {
		var sc SpotifyConfig
		if err := sc.Update(&oauth2.Token{}); err == nil {
			t.Error("expected error for empty token")
		}
		if sc.Token() != nil {
			t.Error("expected nil token when none stored")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(*Config)
			wantErr bool
		}{
			{name: "default", mutate: func(*Config) {}},
			{name: "ytdlp backend", mutate: func(c *Config) { c.Pipeline.Backend = "ytdlp" }},
			{name: "unknown backend", mutate: func(c *Config) { c.Pipeline.Backend = "vlc" }, wantErr: true},
			{name: "missing root", mutate: func(c *Config) { c.Library.Root = "" }, wantErr: true},
			{name: "missing catalog", mutate: func(c *Config) { c.Library.Catalog = "" }, wantErr: true},
			{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				err := config.Validate()
				if (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("Library paths", func(t *testing.T) {
		lib := LibraryConfig{Root: "/srv/music", SongsDir: "songs", ArtDir: "album-art"}
		if got := lib.SongsPath(); got != filepath.Join("/srv/music", "songs") {
			t.Errorf("SongsPath() = %s", got)
		}
		if got := lib.ArtPath(); got != filepath.Join("/srv/music", "album-art") {
			t.Errorf("ArtPath() = %s", got)
		}
	})
}

func TestEnv(t *testing.T) {
	t.Run("LoadEnv ignores missing files", func(t *testing.T) {
		if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("expected nil error for missing file, got %v", err)
		}
	})

	t.Run("ApplyEnv overrides credentials and port", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		content := "CLIENT_ID=env_id\nCLIENT_SECRET=env_secret\nREDIRECT_URI=http://example.test/callback\nPORT=4000\n"
		if err := os.WriteFile(envPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}

		for _, key := range []string{EnvClientID, EnvClientSecret, EnvRedirectURI, EnvPort} {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}

		if err := LoadEnv(envPath); err != nil {
			t.Fatalf("failed to load env: %v", err)
		}

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected client id env_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("expected client secret env_secret, got %s", config.Credentials.Spotify.ClientSecret)
		}
		if config.Credentials.Spotify.RedirectURI != "http://example.test/callback" {
			t.Errorf("unexpected redirect uri %s", config.Credentials.Spotify.RedirectURI)
		}
		if config.Server.Port != 4000 {
			t.Errorf("expected port 4000, got %d", config.Server.Port)
		}
	})
}
