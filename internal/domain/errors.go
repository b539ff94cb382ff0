package domain

import "errors"

// Lyrics lookup errors.
var (
	ErrNoConfidentMatch        = errors.New("no confident match")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrNoLyricsLines           = errors.New("no lyrics lines")
	ErrLyricsNotFound          = errors.New("lyrics not found")
)

// Configuration errors.
var (
	ErrNoProviders = errors.New("no lyrics providers configured")
)
