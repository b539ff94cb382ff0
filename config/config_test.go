package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("LYRICS_RELAY_SPOTIFY_CLIENT_ID", "id")
	t.Setenv("LYRICS_RELAY_SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("LYRICS_RELAY_GENIUS_TOKEN", "genius")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Proxy.Port)
	assert.Equal(t, 1<<20, cfg.Proxy.MaxHeaderBytes)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "9090", cfg.Admin.Port)
	assert.Equal(t, "https", cfg.Upstream.Scheme)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.True(t, cfg.Upstream.StripRequestHopByHop)
	assert.Equal(t, []string{"genius"}, cfg.Lyrics.Providers)
	assert.Equal(t, 10, cfg.Lyrics.MaxCandidates)
	assert.Equal(t, 0, cfg.Lyrics.MaxDistance)
	assert.True(t, cfg.Lyrics.CleanMode)
	assert.True(t, cfg.Lyrics.StrictMethod)
	assert.Equal(t, "en", cfg.Lyrics.Language)
	assert.Equal(t, 5.0, cfg.Backends.RatePerSecond)
	assert.Equal(t, "https://accounts.spotify.com/api/token", cfg.Spotify.TokenURL)
	assert.Equal(t, "info", cfg.Logging.Level)

	bg, text, hl, err := cfg.Lyrics.Colors.Parse()
	require.NoError(t, err)
	assert.Equal(t, int32(-16777216), bg)
	assert.Equal(t, int32(-8421505), text)
	assert.Equal(t, int32(-1), hl)
}

func TestLoad_FromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LYRICS_RELAY_PROXY_PORT", "8443")
	t.Setenv("LYRICS_RELAY_UPSTREAM_TIMEOUT", "5s")
	t.Setenv("LYRICS_RELAY_UPSTREAM_STRIP_REQUEST_HOP_BY_HOP", "false")
	t.Setenv("LYRICS_RELAY_LYRICS_PROVIDERS", "lrclib,genius")
	t.Setenv("LYRICS_RELAY_LYRICS_MAX_DISTANCE", "12")
	t.Setenv("LYRICS_RELAY_LYRICS_CLEAN_MODE", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8443", cfg.Proxy.Port)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.False(t, cfg.Upstream.StripRequestHopByHop)
	assert.Equal(t, []string{"lrclib", "genius"}, cfg.Lyrics.Providers)
	assert.Equal(t, 12, cfg.Lyrics.MaxDistance)
	assert.False(t, cfg.Lyrics.CleanMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
proxy:
  port: "18080"
lyrics:
  providers: [lrclib]
  max_candidates: 5
  colors:
    background: "#FF101010"
    text: -1
    highlight_text: "#FFFFFF"
spotify:
  client_id: file-id
  client_secret: file-secret
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "18080", cfg.Proxy.Port)
	assert.Equal(t, []string{"lrclib"}, cfg.Lyrics.Providers)
	assert.Equal(t, 5, cfg.Lyrics.MaxCandidates)
	assert.Equal(t, "file-id", cfg.Spotify.ClientID)

	bg, text, hl, err := cfg.Lyrics.Colors.Parse()
	require.NoError(t, err)
	assert.Equal(t, int32(-15724528), bg)
	assert.Equal(t, int32(-1), text)
	assert.Equal(t, int32(-1), hl)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	setRequiredEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_CredentialFiles(t *testing.T) {
	dir := t.TempDir()
	idFile := filepath.Join(dir, "id")
	secretFile := filepath.Join(dir, "secret")
	tokenFile := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(idFile, []byte("file-id\n"), 0o600))
	require.NoError(t, os.WriteFile(secretFile, []byte("  file-secret  \n"), 0o600))
	require.NoError(t, os.WriteFile(tokenFile, []byte("file-token"), 0o600))

	t.Setenv("LYRICS_RELAY_SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("LYRICS_RELAY_SPOTIFY_CLIENT_ID_FILE", idFile)
	t.Setenv("LYRICS_RELAY_SPOTIFY_CLIENT_SECRET_FILE", secretFile)
	t.Setenv("LYRICS_RELAY_GENIUS_TOKEN_FILE", tokenFile)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file-id", cfg.Spotify.ClientID)
	assert.Equal(t, "file-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "file-token", cfg.Genius.Token)
}

func TestLoad_CredentialFileNotFound(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LYRICS_RELAY_GENIUS_TOKEN_FILE", "/nonexistent/path/token")

	_, err := Load("")
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Proxy:    ProxyConfig{Port: "8080"},
		Admin:    AdminConfig{Enabled: true, Port: "9090"},
		Upstream: UpstreamConfig{Scheme: "https"},
		Lyrics: LyricsConfig{
			Providers: []string{"genius"},
			Colors:    ColorsConfig{Background: "-16777216", Text: "-8421505", HighlightText: "-1"},
		},
		Spotify: SpotifyConfig{ClientID: "id", ClientSecret: "secret"},
		Genius:  GeniusConfig{Token: "token"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Proxy.Port = "" }, wantErr: "proxy.port"},
		{name: "admin without port", mutate: func(c *Config) { c.Admin.Port = "" }, wantErr: "admin.port"},
		{name: "admin disabled without port", mutate: func(c *Config) { c.Admin = AdminConfig{} }},
		{name: "bad scheme", mutate: func(c *Config) { c.Upstream.Scheme = "ftp" }, wantErr: "upstream.scheme"},
		{name: "no providers", mutate: func(c *Config) { c.Lyrics.Providers = nil }, wantErr: "at least one provider"},
		{name: "unknown provider", mutate: func(c *Config) { c.Lyrics.Providers = []string{"azlyrics"} }, wantErr: "unknown lyrics provider"},
		{name: "negative candidates", mutate: func(c *Config) { c.Lyrics.MaxCandidates = -1 }, wantErr: "max_candidates"},
		{name: "negative distance", mutate: func(c *Config) { c.Lyrics.MaxDistance = -1 }, wantErr: "max_distance"},
		{name: "bad color", mutate: func(c *Config) { c.Lyrics.Colors.Text = "blue" }, wantErr: "lyrics.colors.text"},
		{name: "missing spotify", mutate: func(c *Config) { c.Spotify.ClientSecret = "" }, wantErr: "spotify credentials"},
		{name: "genius without token", mutate: func(c *Config) { c.Genius.Token = "" }, wantErr: "genius token"},
		{name: "lrclib needs no token", mutate: func(c *Config) {
			c.Genius.Token = ""
			c.Lyrics.Providers = []string{"lrclib"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    int32
		wantErr bool
	}{
		{in: "-16777216", want: -16777216},
		{in: "-1", want: -1},
		{in: "255", want: 255},
		{in: "#FF000000", want: -16777216},
		{in: "#ff7f7f7f", want: -8421505},
		{in: "#FFFFFFFF", want: -1},
		{in: "#7F7F7F", want: -8421505},
		{in: "#00000000", want: 0},
		{in: "#123", wantErr: true},
		{in: "#GGGGGGGG", wantErr: true},
		{in: "4294967295", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
