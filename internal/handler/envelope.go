package handler

import (
	"bytes"
	"encoding/json"
	"strconv"

	"lyrics-relay/internal/domain"
)

// EnvelopeConfig names the provider shown by the client.
type EnvelopeConfig struct {
	Provider            string
	ProviderDisplayName string
}

// DefaultEnvelopeConfig returns the default provider labels.
func DefaultEnvelopeConfig() EnvelopeConfig {
	return EnvelopeConfig{
		Provider:            "LyricsRelay",
		ProviderDisplayName: "Lyrics Relay",
	}
}

// Envelope is the JSON document the client expects from the lyrics endpoint.
type Envelope struct {
	Lyrics           EnvelopeLyrics `json:"lyrics"`
	Colors           EnvelopeColors `json:"colors"`
	HasVocalsRemoval bool           `json:"hasVocalsRemoval"`
}

// EnvelopeLyrics is the "lyrics" object of the envelope.
type EnvelopeLyrics struct {
	Lines                []EnvelopeLine `json:"lines"`
	Provider             string         `json:"provider"`
	ProviderLyricsID     string         `json:"providerLyricsId"`
	ProviderDisplayName  string         `json:"providerDisplayName"`
	SyncLyricsURI        string         `json:"syncLyricsUri"`
	IsDenseTypeface      bool           `json:"isDenseTypeface"`
	Alternatives         []string       `json:"alternatives"`
	Language             string         `json:"language"`
	IsRtlLanguage        bool           `json:"isRtlLanguage"`
	FullscreenAction     string         `json:"fullscreenAction"`
	ShowUpsell           bool           `json:"showUpsell"`
	CapStatus            string         `json:"capStatus"`
	ImpressionsRemaining int            `json:"impressionsRemaining"`
}

// EnvelopeLine is one line. Times are decimal strings.
type EnvelopeLine struct {
	StartTimeMs string   `json:"startTimeMs"`
	Words       string   `json:"words"`
	Syllables   []string `json:"syllables"`
	EndTimeMs   string   `json:"endTimeMs"`
}

// EnvelopeColors holds signed ARGB integers.
type EnvelopeColors struct {
	Background    int32 `json:"background"`
	Text          int32 `json:"text"`
	HighlightText int32 `json:"highlightText"`
}

// NewEnvelope builds the client envelope for a payload.
func NewEnvelope(payload *domain.LyricsPayload, config EnvelopeConfig) Envelope {
	lines := make([]EnvelopeLine, 0, len(payload.Lines))
	for _, l := range payload.Lines {
		lines = append(lines, EnvelopeLine{
			StartTimeMs: strconv.Itoa(l.StartTimeMs),
			Words:       l.Text,
			Syllables:   []string{},
			EndTimeMs:   "0",
		})
	}

	displayName := config.ProviderDisplayName
	if payload.Provider != "" {
		displayName += " (" + payload.Provider + ")"
	}

	return Envelope{
		Lyrics: EnvelopeLyrics{
			Lines:                lines,
			Provider:             config.Provider,
			ProviderLyricsID:     "0",
			ProviderDisplayName:  displayName,
			SyncLyricsURI:        "",
			Alternatives:         []string{},
			Language:             payload.Language,
			IsRtlLanguage:        payload.IsRTL,
			FullscreenAction:     "FULLSCREEN_LYRICS",
			CapStatus:            "NONE",
			ImpressionsRemaining: 0,
		},
		Colors: EnvelopeColors{
			Background:    payload.Colors.Background,
			Text:          payload.Colors.Text,
			HighlightText: payload.Colors.HighlightText,
		},
		HasVocalsRemoval: false,
	}
}

// MarshalEnvelope encodes the envelope without HTML escaping, so lyrics
// containing "&" or "<" stay readable.
func MarshalEnvelope(payload *domain.LyricsPayload, config EnvelopeConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(NewEnvelope(payload, config)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
