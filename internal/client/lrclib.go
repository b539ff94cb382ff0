package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"lyrics-relay/internal/domain"
)

// DefaultLRCLibBaseURL is the public LRCLib instance.
const DefaultLRCLibBaseURL = "https://lrclib.net"

// LRCLibClient searches LRCLib and fetches plain lyrics by record id.
type LRCLibClient struct {
	*backendClient
	baseURL string
}

var _ domain.LyricsProvider = (*LRCLibClient)(nil)

// NewLRCLibClient creates an LRCLib lyrics provider. LRCLib needs no credentials.
func NewLRCLibClient(baseURL string, opts Options) *LRCLibClient {
	if baseURL == "" {
		baseURL = DefaultLRCLibBaseURL
	}
	return &LRCLibClient{
		backendClient: newBackendClient("lrclib", opts),
		baseURL:       strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (c *LRCLibClient) Name() string {
	return "lrclib"
}

type lrclibRecord struct {
	ID           int64  `json:"id"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
}

// Search returns one song hit per LRCLib record. Instrumental records are
// reported with a non-song kind so they are never picked.
func (c *LRCLibClient) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	var records []lrclibRecord
	if err := c.getJSON(ctx, "search", c.baseURL+"/api/search?q="+url.QueryEscape(query), nil, &records); err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(records))
	for _, r := range records {
		kind := domain.KindSong
		if r.Instrumental {
			kind = "instrumental"
		}
		hits = append(hits, domain.SearchHit{
			Kind:              kind,
			Title:             r.TrackName,
			PrimaryArtistName: r.ArtistName,
			PageURL:           c.baseURL + "/api/get/" + strconv.FormatInt(r.ID, 10),
		})
	}
	return hits, nil
}

// FetchLines returns the record's plain lyrics split into lines.
func (c *LRCLibClient) FetchLines(ctx context.Context, pageURL string) ([]string, error) {
	var record lrclibRecord
	if err := c.getJSON(ctx, "get", pageURL, nil, &record); err != nil {
		return nil, err
	}
	if strings.TrimSpace(record.PlainLyrics) == "" {
		return nil, fmt.Errorf("lrclib record %d: %w", record.ID, domain.ErrNoLyricsLines)
	}

	lines := strings.Split(record.PlainLyrics, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines, nil
}
