package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"lyrics-relay/internal/domain"
	"lyrics-relay/internal/metrics"
)

const (
	// DefaultSpotifyTokenURL is the client-credentials token endpoint.
	DefaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"
	// DefaultSpotifyAPIBaseURL is the Web API root.
	DefaultSpotifyAPIBaseURL = "https://api.spotify.com/v1"
)

// SpotifyConfig holds the app credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
}

// SpotifyClient resolves track ids to title and artists through the Web API.
type SpotifyClient struct {
	*backendClient
	apiBaseURL string
	tokens     *tokenCache
}

var _ domain.MetadataResolver = (*SpotifyClient)(nil)

// NewSpotifyClient creates a metadata resolver. No network I/O happens until
// the first Resolve.
func NewSpotifyClient(cfg SpotifyConfig, opts Options) *SpotifyClient {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultSpotifyTokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultSpotifyAPIBaseURL
	}

	base := newBackendClient("spotify", opts)
	return &SpotifyClient{
		backendClient: base,
		apiBaseURL:    cfg.APIBaseURL,
		tokens: newTokenCache("spotify", &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}, base.httpClient, base.timeout),
	}
}

type spotifyTrack struct {
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

// Resolve fetches the track's title and artist names.
func (c *SpotifyClient) Resolve(ctx context.Context, trackID string) (domain.TrackIdentity, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return domain.TrackIdentity{}, c.unavailable("token", err)
	}

	header := http.Header{}
	token.SetAuthHeader(&http.Request{Header: header})

	var track spotifyTrack
	if err := c.getJSON(ctx, "track", c.apiBaseURL+"/tracks/"+url.PathEscape(trackID), header, &track); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate(token)
		}
		return domain.TrackIdentity{}, err
	}
	if track.Name == "" {
		return domain.TrackIdentity{}, c.unavailable("track", fmt.Errorf("track %q has no name", trackID))
	}

	identity := domain.TrackIdentity{Title: track.Name}
	for _, a := range track.Artists {
		identity.Artists = append(identity.Artists, a.Name)
	}
	return identity, nil
}

// tokenCache keeps one access token and refreshes it lazily. At most one
// refresh is in flight; concurrent callers share its result.
type tokenCache struct {
	name       string
	config     *clientcredentials.Config
	httpClient *http.Client
	timeout    time.Duration

	mu    sync.RWMutex
	token *oauth2.Token

	refreshGroup singleflight.Group
}

func newTokenCache(name string, config *clientcredentials.Config, httpClient *http.Client, timeout time.Duration) *tokenCache {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &tokenCache{
		name:       name,
		config:     config,
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Token returns a valid token, refreshing it if needed.
func (t *tokenCache) Token(ctx context.Context) (*oauth2.Token, error) {
	if tok := t.cached(); tok != nil {
		return tok, nil
	}

	ch := t.refreshGroup.DoChan("token", func() (any, error) {
		if tok := t.cached(); tok != nil {
			return tok, nil
		}

		// The refresh outlives any single caller's cancellation.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()
		refreshCtx = context.WithValue(refreshCtx, oauth2.HTTPClient, t.httpClient)

		tok, err := t.config.Token(refreshCtx)
		if err != nil {
			metrics.RecordTokenRefresh(t.name, "error")
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		metrics.RecordTokenRefresh(t.name, "ok")

		t.mu.Lock()
		t.token = tok
		t.mu.Unlock()
		return tok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops tok if it is still the cached token.
func (t *tokenCache) Invalidate(tok *oauth2.Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == tok {
		t.token = nil
	}
}

func (t *tokenCache) cached() *oauth2.Token {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.token.Valid() {
		return t.token
	}
	return nil
}
