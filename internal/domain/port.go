package domain

import "context"

// MetadataResolver resolves a track id to its identity.
type MetadataResolver interface {
	Resolve(ctx context.Context, trackID string) (TrackIdentity, error)
}

// LyricsProvider searches a third-party lyrics site and fetches page text.
type LyricsProvider interface {
	Name() string
	Search(ctx context.Context, query string) ([]SearchHit, error)
	FetchLines(ctx context.Context, pageURL string) ([]string, error)
}
