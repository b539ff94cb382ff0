// Package config provides Viper-based configuration management for lyrics-relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LYRICS_RELAY_PROXY_PORT.
const EnvPrefix = "LYRICS_RELAY"

// KnownProviders lists the lyrics providers that can be configured.
var KnownProviders = []string{"genius", "lrclib"}

// Config holds the configuration for the relay.
type Config struct {
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Lyrics   LyricsConfig   `mapstructure:"lyrics"`
	Backends BackendsConfig `mapstructure:"backends"`
	Spotify  SpotifyConfig  `mapstructure:"spotify"`
	Genius   GeniusConfig   `mapstructure:"genius"`
	LRCLib   LRCLibConfig   `mapstructure:"lrclib"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProxyConfig configures the intercepting listener.
type ProxyConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// AdminConfig configures the health and metrics listener.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

// UpstreamConfig configures pass-through forwarding.
type UpstreamConfig struct {
	Scheme               string        `mapstructure:"scheme"`
	Timeout              time.Duration `mapstructure:"timeout"`
	StripRequestHopByHop bool          `mapstructure:"strip_request_hop_by_hop"`
}

// LyricsConfig configures the local lyrics pipeline.
type LyricsConfig struct {
	// Providers are tried in order.
	Providers           []string      `mapstructure:"providers"`
	MaxCandidates       int           `mapstructure:"max_candidates"`
	MaxDistance         int           `mapstructure:"max_distance"`
	CleanMode           bool          `mapstructure:"clean_mode"`
	StrictMethod        bool          `mapstructure:"strict_method"`
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	Language            string        `mapstructure:"language"`
	RTL                 bool          `mapstructure:"rtl"`
	Colors              ColorsConfig  `mapstructure:"colors"`
	ProviderName        string        `mapstructure:"provider_name"`
	ProviderDisplayName string        `mapstructure:"provider_display_name"`
}

// ColorsConfig holds ARGB colors as signed integers or #AARRGGBB strings.
type ColorsConfig struct {
	Background    string `mapstructure:"background"`
	Text          string `mapstructure:"text"`
	HighlightText string `mapstructure:"highlight_text"`
}

// BackendsConfig holds the limits shared by every backend client.
type BackendsConfig struct {
	Timeout                 time.Duration `mapstructure:"timeout"`
	RatePerSecond           float64       `mapstructure:"rate_per_second"`
	Burst                   int           `mapstructure:"burst"`
	BreakerFailureThreshold int           `mapstructure:"breaker_failure_threshold"`
	BreakerSuccessThreshold int           `mapstructure:"breaker_success_threshold"`
	BreakerOpenTimeout      time.Duration `mapstructure:"breaker_open_timeout"`
}

// SpotifyConfig holds the metadata API credentials.
type SpotifyConfig struct {
	ClientID         string `mapstructure:"client_id"`
	ClientIDFile     string `mapstructure:"client_id_file"`
	ClientSecret     string `mapstructure:"client_secret"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	TokenURL         string `mapstructure:"token_url"`
	APIBaseURL       string `mapstructure:"api_base_url"`
}

// GeniusConfig holds the Genius API credentials.
type GeniusConfig struct {
	Token      string `mapstructure:"token"`
	TokenFile  string `mapstructure:"token_file"`
	APIBaseURL string `mapstructure:"api_base_url"`
}

// LRCLibConfig holds the LRCLib endpoint.
type LRCLibConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from an optional file and environment variables,
// resolves credential files and validates the result.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("lyrics-relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/lyrics-relay")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// LOG_LEVEL is honored for parity with the other services.
	if err := v.BindEnv("logging.level", EnvPrefix+"_LOGGING_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.LoadCredentials(); err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("proxy.port", "8080")
	v.SetDefault("proxy.read_timeout", 30*time.Second)
	v.SetDefault("proxy.write_timeout", 90*time.Second)
	v.SetDefault("proxy.max_header_bytes", 1<<20)

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.port", "9090")

	v.SetDefault("upstream.scheme", "https")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.strip_request_hop_by_hop", true)

	v.SetDefault("lyrics.providers", []string{"genius"})
	v.SetDefault("lyrics.max_candidates", 10)
	v.SetDefault("lyrics.max_distance", 0)
	v.SetDefault("lyrics.clean_mode", true)
	v.SetDefault("lyrics.strict_method", true)
	v.SetDefault("lyrics.call_timeout", 10*time.Second)
	v.SetDefault("lyrics.language", "en")
	v.SetDefault("lyrics.rtl", false)
	v.SetDefault("lyrics.colors.background", "-16777216")
	v.SetDefault("lyrics.colors.text", "-8421505")
	v.SetDefault("lyrics.colors.highlight_text", "-1")
	v.SetDefault("lyrics.provider_name", "LyricsRelay")
	v.SetDefault("lyrics.provider_display_name", "Lyrics Relay")

	v.SetDefault("backends.timeout", 10*time.Second)
	v.SetDefault("backends.rate_per_second", 5.0)
	v.SetDefault("backends.burst", 10)
	v.SetDefault("backends.breaker_failure_threshold", 5)
	v.SetDefault("backends.breaker_success_threshold", 2)
	v.SetDefault("backends.breaker_open_timeout", 30*time.Second)

	// Empty defaults make the keys visible to AutomaticEnv during Unmarshal.
	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_id_file", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("spotify.client_secret_file", "")
	v.SetDefault("spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("spotify.api_base_url", "https://api.spotify.com/v1")

	v.SetDefault("genius.token", "")
	v.SetDefault("genius.token_file", "")
	v.SetDefault("genius.api_base_url", "https://api.genius.com")

	v.SetDefault("lrclib.base_url", "https://lrclib.net")

	v.SetDefault("logging.level", "info")
}

// LoadCredentials resolves every *_file setting into its value.
// A file takes precedence over the inline value.
func (c *Config) LoadCredentials() error {
	var err error
	if c.Spotify.ClientID, err = loadSecret(c.Spotify.ClientID, c.Spotify.ClientIDFile); err != nil {
		return fmt.Errorf("spotify client id: %w", err)
	}
	if c.Spotify.ClientSecret, err = loadSecret(c.Spotify.ClientSecret, c.Spotify.ClientSecretFile); err != nil {
		return fmt.Errorf("spotify client secret: %w", err)
	}
	if c.Genius.Token, err = loadSecret(c.Genius.Token, c.Genius.TokenFile); err != nil {
		return fmt.Errorf("genius token: %w", err)
	}
	return nil
}

// loadSecret loads a secret from file or falls back to the inline value.
func loadSecret(value, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return value, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Proxy.Port == "" {
		return errors.New("proxy.port is required")
	}
	if c.Admin.Enabled && c.Admin.Port == "" {
		return errors.New("admin.port is required when the admin listener is enabled")
	}
	if c.Upstream.Scheme != "https" && c.Upstream.Scheme != "http" {
		return fmt.Errorf("upstream.scheme must be http or https, got %q", c.Upstream.Scheme)
	}
	if len(c.Lyrics.Providers) == 0 {
		return errors.New("lyrics.providers must name at least one provider")
	}
	for _, p := range c.Lyrics.Providers {
		if !slices.Contains(KnownProviders, p) {
			return fmt.Errorf("unknown lyrics provider %q (known: %s)", p, strings.Join(KnownProviders, ", "))
		}
	}
	if c.Lyrics.MaxCandidates < 0 {
		return errors.New("lyrics.max_candidates must not be negative")
	}
	if c.Lyrics.MaxDistance < 0 {
		return errors.New("lyrics.max_distance must not be negative")
	}
	if _, _, _, err := c.Lyrics.Colors.Parse(); err != nil {
		return err
	}
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return errors.New("spotify credentials not configured: set LYRICS_RELAY_SPOTIFY_CLIENT_ID and LYRICS_RELAY_SPOTIFY_CLIENT_SECRET or their _FILE variants")
	}
	if slices.Contains(c.Lyrics.Providers, "genius") && c.Genius.Token == "" {
		return errors.New("genius token not configured: set LYRICS_RELAY_GENIUS_TOKEN or LYRICS_RELAY_GENIUS_TOKEN_FILE")
	}
	return nil
}

// Parse converts the three colors to packed signed ARGB values.
func (c ColorsConfig) Parse() (background, text, highlight int32, err error) {
	if background, err = ParseColor(c.Background); err != nil {
		return 0, 0, 0, fmt.Errorf("lyrics.colors.background: %w", err)
	}
	if text, err = ParseColor(c.Text); err != nil {
		return 0, 0, 0, fmt.Errorf("lyrics.colors.text: %w", err)
	}
	if highlight, err = ParseColor(c.HighlightText); err != nil {
		return 0, 0, 0, fmt.Errorf("lyrics.colors.highlight_text: %w", err)
	}
	return background, text, highlight, nil
}

// ParseColor accepts a signed 32-bit integer or #AARRGGBB. #RRGGBB is
// treated as fully opaque. Hex components are packed big-endian and the
// result is reinterpreted as signed.
func ParseColor(s string) (int32, error) {
	s = strings.TrimSpace(s)
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) == 6 {
			hex = "FF" + hex
		}
		if len(hex) != 8 {
			return 0, fmt.Errorf("invalid color %q: want #AARRGGBB or #RRGGBB", s)
		}
		u, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q: %w", s, err)
		}
		return int32(uint32(u)), nil
	}

	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return int32(n), nil
}
