// Package domain provides domain types for the lyrics relay.
package domain

import "strings"

// TrackIdentity is the source-of-truth title and artist credits of a track.
type TrackIdentity struct {
	Title   string
	Artists []string
}

// SearchQuery builds the provider search query "{title} - {artist1, artist2}".
func (t TrackIdentity) SearchQuery() string {
	return t.Title + " - " + strings.Join(t.Artists, ", ")
}

// SearchHit is a single provider search result.
type SearchHit struct {
	Kind              string
	Title             string
	PrimaryArtistName string
	PageURL           string
}

// KindSong is the only SearchHit kind eligible for scoring.
const KindSong = "song"

// ScoredHit pairs a hit with its score. Higher is better.
type ScoredHit struct {
	Hit   SearchHit
	Score int
}

// LocalRequest describes a request the relay answers itself.
type LocalRequest struct {
	TrackID string
	// ImageURL is the optional trailing segment after /image/.
	ImageURL string
}

// LyricsLine is one displayed line of lyrics.
type LyricsLine struct {
	Text        string
	StartTimeMs int
}

// Colors holds packed signed ARGB values for the lyrics view.
type Colors struct {
	Background    int32
	Text          int32
	HighlightText int32
}

// LyricsPayload is the unit handed to response serialization.
type LyricsPayload struct {
	Language string
	IsRTL    bool
	Colors   Colors
	Lines    []LyricsLine
	// Provider is the name of the provider the lyrics came from.
	Provider string
}
