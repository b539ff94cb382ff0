// Package classifier decides whether an inbound request is a local lyrics request.
package classifier

import (
	"net/http"
	"regexp"
	"strings"

	"lyrics-relay/internal/domain"
)

// lyricsRoutePattern matches ".../track/<id>/image[/<image url>]" with an optional query.
var lyricsRoutePattern = regexp.MustCompile(`(?:^|/)track/([A-Za-z0-9]+)/image(?:/([^?#]*))?(?:[?#]|$)`)

// Classifier recognizes lyrics requests by path and method.
type Classifier struct {
	// StrictMethod rejects every method other than GET.
	StrictMethod bool
}

// New creates a classifier.
func New(strictMethod bool) *Classifier {
	return &Classifier{StrictMethod: strictMethod}
}

// Classify returns the local request descriptor, or false when the request
// should be forwarded upstream.
func (c *Classifier) Classify(method, path string) (domain.LocalRequest, bool) {
	if c.StrictMethod && !strings.EqualFold(method, http.MethodGet) {
		return domain.LocalRequest{}, false
	}

	match := lyricsRoutePattern.FindStringSubmatch(path)
	if match == nil {
		return domain.LocalRequest{}, false
	}

	return domain.LocalRequest{
		TrackID:  match[1],
		ImageURL: match[2],
	}, true
}
