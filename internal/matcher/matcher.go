// Package matcher picks the provider search hit that best matches a known track.
package matcher

import (
	"github.com/agnivade/levenshtein"

	"lyrics-relay/internal/domain"
)

// DefaultMaxCandidates is the candidate cap used when none is configured.
const DefaultMaxCandidates = 10

// Scorer ranks search hits against a track identity.
type Scorer struct {
	// MaxCandidates caps how many song hits are scored, in provider order.
	MaxCandidates int
	// MaxDistance rejects the best hit when its combined distance exceeds it.
	// Zero disables the cutoff.
	MaxDistance int
}

// NewScorer creates a scorer with the given candidate cap and distance cutoff.
func NewScorer(maxCandidates, maxDistance int) *Scorer {
	return &Scorer{MaxCandidates: maxCandidates, MaxDistance: maxDistance}
}

// PickBest returns the best hit, or false when no candidate qualifies.
func (s *Scorer) PickBest(hits []domain.SearchHit, identity domain.TrackIdentity) (domain.SearchHit, bool) {
	best, ok := PickBestScored(hits, identity, s.MaxCandidates)
	if !ok {
		return domain.SearchHit{}, false
	}
	if s.MaxDistance > 0 && -best.Score > s.MaxDistance {
		return domain.SearchHit{}, false
	}
	return best.Hit, true
}

// PickBest returns the highest scoring song hit among the first maxCandidates.
// Ties resolve to the earliest candidate.
func PickBest(hits []domain.SearchHit, identity domain.TrackIdentity, maxCandidates int) (domain.SearchHit, bool) {
	best, ok := PickBestScored(hits, identity, maxCandidates)
	return best.Hit, ok
}

// PickBestScored is PickBest that also reports the winning score.
func PickBestScored(hits []domain.SearchHit, identity domain.TrackIdentity, maxCandidates int) (domain.ScoredHit, bool) {
	ranked := Rank(hits, identity, maxCandidates)
	if len(ranked) == 0 {
		return domain.ScoredHit{}, false
	}

	best := ranked[0]
	for _, candidate := range ranked[1:] {
		// strict comparison keeps the first maximal candidate
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	return best, true
}

// Rank scores the candidate set in provider order without reordering it.
func Rank(hits []domain.SearchHit, identity domain.TrackIdentity, maxCandidates int) []domain.ScoredHit {
	candidates := Candidates(hits, maxCandidates)
	ranked := make([]domain.ScoredHit, 0, len(candidates))
	for _, hit := range candidates {
		ranked = append(ranked, domain.ScoredHit{Hit: hit, Score: Score(hit, identity)})
	}
	return ranked
}

// Candidates filters hits to songs and truncates to maxCandidates.
func Candidates(hits []domain.SearchHit, maxCandidates int) []domain.SearchHit {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	songs := make([]domain.SearchHit, 0, min(len(hits), maxCandidates))
	for _, hit := range hits {
		if hit.Kind != domain.KindSong {
			continue
		}
		songs = append(songs, hit)
		if len(songs) == maxCandidates {
			break
		}
	}
	return songs
}

// Score returns -(title distance + closest artist distance).
func Score(hit domain.SearchHit, identity domain.TrackIdentity) int {
	return -(Distance(hit.Title, identity.Title) + ArtistDistance(hit.PrimaryArtistName, identity.Artists))
}

// ArtistDistance is the smallest distance from name to any of artists.
// With no known artists it is the length of name.
func ArtistDistance(name string, artists []string) int {
	if len(artists) == 0 {
		return Distance(name, "")
	}

	best := Distance(name, artists[0])
	for _, artist := range artists[1:] {
		if d := Distance(name, artist); d < best {
			best = d
		}
	}
	return best
}

// Distance is the Levenshtein distance between a and b in code points.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}
