package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lyrics-relay/internal/domain"
)

// DefaultGeniusAPIBaseURL is the Genius API root.
const DefaultGeniusAPIBaseURL = "https://api.genius.com"

// geniusLyricsSelector matches the current container markup and the legacy one.
const geniusLyricsSelector = `div[data-lyrics-container="true"], div.lyrics`

// GeniusConfig holds the Genius client access token and API root.
type GeniusConfig struct {
	AccessToken string
	APIBaseURL  string
}

// GeniusClient searches Genius and scrapes lyrics pages.
type GeniusClient struct {
	*backendClient
	accessToken string
	apiBaseURL  string
}

var _ domain.LyricsProvider = (*GeniusClient)(nil)

// NewGeniusClient creates a Genius lyrics provider.
func NewGeniusClient(cfg GeniusConfig, opts Options) *GeniusClient {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultGeniusAPIBaseURL
	}
	return &GeniusClient{
		backendClient: newBackendClient("genius", opts),
		accessToken:   cfg.AccessToken,
		apiBaseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
	}
}

// Name returns the provider name.
func (c *GeniusClient) Name() string {
	return "genius"
}

type geniusSearchResponse struct {
	Response struct {
		Hits []struct {
			Type   string `json:"type"`
			Result struct {
				Title         string `json:"title"`
				URL           string `json:"url"`
				PrimaryArtist *struct {
					Name string `json:"name"`
				} `json:"primary_artist"`
			} `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

// Search returns the hits in Genius relevance order.
func (c *GeniusClient) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.accessToken)
	header.Set("Accept", "application/json")

	var resp geniusSearchResponse
	if err := c.getJSON(ctx, "search", c.apiBaseURL+"/search?q="+url.QueryEscape(query), header, &resp); err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(resp.Response.Hits))
	for _, h := range resp.Response.Hits {
		hit := domain.SearchHit{
			Kind:    h.Type,
			Title:   h.Result.Title,
			PageURL: h.Result.URL,
		}
		if h.Result.PrimaryArtist != nil {
			hit.PrimaryArtistName = h.Result.PrimaryArtist.Name
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// FetchLines downloads a song page and returns its lyric lines with markup
// and scripts removed.
func (c *GeniusClient) FetchLines(ctx context.Context, pageURL string) ([]string, error) {
	body, err := c.get(ctx, "page", pageURL, http.Header{"Accept": {"text/html"}})
	if err != nil {
		return nil, err
	}

	lines, err := ExtractGeniusLines(body)
	if err != nil {
		return nil, c.unavailable("page", err)
	}
	return lines, nil
}

// ExtractGeniusLines pulls lyric lines out of a Genius song page.
func ExtractGeniusLines(page []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	doc.Find("script, style").Remove()

	containers := doc.Find(geniusLyricsSelector)
	if containers.Length() == 0 {
		return nil, fmt.Errorf("%w: no lyrics container on page", domain.ErrNoLyricsLines)
	}

	// Headers and contributor blurbs inside the container are not lyrics.
	containers.Find(`[data-exclude-from-selection="true"]`).Remove()
	containers.Find("br").ReplaceWithHtml("\n")

	var lines []string
	containers.Each(func(_ int, s *goquery.Selection) {
		for _, line := range strings.Split(s.Text(), "\n") {
			lines = append(lines, strings.TrimRight(line, "\r"))
		}
	})
	return lines, nil
}
