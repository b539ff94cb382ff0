package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lyrics-relay/internal/domain"
)

// MockMetadataResolver is a mock implementation of domain.MetadataResolver
type MockMetadataResolver struct {
	mock.Mock
}

func (m *MockMetadataResolver) Resolve(ctx context.Context, trackID string) (domain.TrackIdentity, error) {
	args := m.Called(ctx, trackID)
	return args.Get(0).(domain.TrackIdentity), args.Error(1)
}

// MockLyricsProvider is a mock implementation of domain.LyricsProvider
type MockLyricsProvider struct {
	mock.Mock
	name string
}

func (m *MockLyricsProvider) Name() string {
	return m.name
}

func (m *MockLyricsProvider) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchHit), args.Error(1)
}

func (m *MockLyricsProvider) FetchLines(ctx context.Context, pageURL string) ([]string, error) {
	args := m.Called(ctx, pageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

var imagine = domain.TrackIdentity{Title: "Imagine", Artists: []string{"John Lennon"}}

var imagineHits = []domain.SearchHit{
	{Kind: "song", Title: "Imagine", PrimaryArtistName: "John Lennon", PageURL: "A"},
	{Kind: "song", Title: "Imaging (Remix)", PrimaryArtistName: "J. Lennon Tribute", PageURL: "B"},
}

func newTestOrchestrator(t *testing.T, metadata domain.MetadataResolver, providers ...domain.LyricsProvider) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(metadata, providers, DefaultConfig(), nil)
	require.NoError(t, err)
	return o
}

func TestNewOrchestrator_Validation(t *testing.T) {
	_, err := NewOrchestrator(nil, []domain.LyricsProvider{&MockLyricsProvider{}}, DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = NewOrchestrator(&MockMetadataResolver{}, nil, DefaultConfig(), nil)
	assert.ErrorIs(t, err, domain.ErrNoProviders)
}

func TestGetLyrics_SelectsClosestHit(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").Return(imagine, nil)

	provider := &MockLyricsProvider{name: "genius"}
	provider.On("Search", mock.Anything, "Imagine - John Lennon").Return(imagineHits, nil)
	provider.On("FetchLines", mock.Anything, "A").Return([]string{"Imagine there's no heaven"}, nil)

	payload, err := newTestOrchestrator(t, metadata, provider).GetLyrics(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, []domain.LyricsLine{{Text: "Imagine there's no heaven", StartTimeMs: 0}}, payload.Lines)
	assert.Equal(t, "genius", payload.Provider)
	assert.Equal(t, "en", payload.Language)
	assert.Equal(t, int32(-1), payload.Colors.HighlightText)
	provider.AssertNotCalled(t, "FetchLines", mock.Anything, "B")
	metadata.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestGetLyrics_CleanMode(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").Return(imagine, nil)

	provider := &MockLyricsProvider{name: "genius"}
	provider.On("Search", mock.Anything, mock.Anything).Return(imagineHits, nil)
	provider.On("FetchLines", mock.Anything, "A").
		Return([]string{"[Chorus]", "La la la", "", "[Verse]", "Go now"}, nil)

	payload, err := newTestOrchestrator(t, metadata, provider).GetLyrics(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, []domain.LyricsLine{
		{Text: "La la la", StartTimeMs: 0},
		{Text: "Go now", StartTimeMs: 0},
	}, payload.Lines)
}

func TestGetLyrics_MetadataFailureIsNotFound(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").
		Return(domain.TrackIdentity{}, domain.ErrCollaboratorUnavailable)

	provider := &MockLyricsProvider{name: "genius"}

	payload, err := newTestOrchestrator(t, metadata, provider).GetLyrics(context.Background(), "abc123")

	assert.Nil(t, payload)
	assert.ErrorIs(t, err, domain.ErrLyricsNotFound)
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
	provider.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestGetLyrics_NoSongHitsIsNotFound(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").Return(imagine, nil)

	provider := &MockLyricsProvider{name: "genius"}
	provider.On("Search", mock.Anything, mock.Anything).
		Return([]domain.SearchHit{{Kind: "article", Title: "Imagine", PageURL: "X"}}, nil)

	_, err := newTestOrchestrator(t, metadata, provider).GetLyrics(context.Background(), "abc123")

	assert.ErrorIs(t, err, domain.ErrLyricsNotFound)
	assert.ErrorIs(t, err, domain.ErrNoConfidentMatch)
	provider.AssertNotCalled(t, "FetchLines", mock.Anything, mock.Anything)
}

func TestGetLyrics_OnlyAnnotationsIsNotFound(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").Return(imagine, nil)

	provider := &MockLyricsProvider{name: "genius"}
	provider.On("Search", mock.Anything, mock.Anything).Return(imagineHits, nil)
	provider.On("FetchLines", mock.Anything, "A").Return([]string{"[Instrumental]", "  ", ""}, nil)

	_, err := newTestOrchestrator(t, metadata, provider).GetLyrics(context.Background(), "abc123")

	assert.ErrorIs(t, err, domain.ErrLyricsNotFound)
	assert.ErrorIs(t, err, domain.ErrNoLyricsLines)
}

func TestGetLyrics_FallsBackToNextProvider(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").Return(imagine, nil)

	first := &MockLyricsProvider{name: "genius"}
	first.On("Search", mock.Anything, mock.Anything).Return(nil, domain.ErrCollaboratorUnavailable)

	second := &MockLyricsProvider{name: "lrclib"}
	second.On("Search", mock.Anything, mock.Anything).Return(imagineHits, nil)
	second.On("FetchLines", mock.Anything, "A").Return([]string{"Imagine all the people"}, nil)

	third := &MockLyricsProvider{name: "unused"}

	payload, err := newTestOrchestrator(t, metadata, first, second, third).GetLyrics(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "lrclib", payload.Provider)
	third.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestGetLyrics_AllProvidersFail(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").Return(imagine, nil)

	fetchErr := errors.New("page gone")
	first := &MockLyricsProvider{name: "genius"}
	first.On("Search", mock.Anything, mock.Anything).Return(imagineHits, nil)
	first.On("FetchLines", mock.Anything, "A").Return(nil, fetchErr)

	second := &MockLyricsProvider{name: "lrclib"}
	second.On("Search", mock.Anything, mock.Anything).Return([]domain.SearchHit{}, nil)

	payload, err := newTestOrchestrator(t, metadata, first, second).GetLyrics(context.Background(), "abc123")

	assert.Nil(t, payload)
	assert.ErrorIs(t, err, domain.ErrLyricsNotFound)
	assert.ErrorIs(t, err, fetchErr)
	assert.ErrorIs(t, err, domain.ErrNoConfidentMatch)
	assert.Contains(t, err.Error(), "genius")
	assert.Contains(t, err.Error(), "lrclib")
}

func TestGetLyrics_MaxDistanceRejectsPoorMatch(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").Return(imagine, nil)

	provider := &MockLyricsProvider{name: "genius"}
	provider.On("Search", mock.Anything, mock.Anything).
		Return([]domain.SearchHit{{Kind: "song", Title: "Something Else", PrimaryArtistName: "Other", PageURL: "Z"}}, nil)

	cfg := DefaultConfig()
	cfg.MaxDistance = 3
	o, err := NewOrchestrator(metadata, []domain.LyricsProvider{provider}, cfg, nil)
	require.NoError(t, err)

	_, err = o.GetLyrics(context.Background(), "abc123")
	assert.ErrorIs(t, err, domain.ErrNoConfidentMatch)
}

func TestGetLyrics_Idempotent(t *testing.T) {
	metadata := new(MockMetadataResolver)
	metadata.On("Resolve", mock.Anything, "abc123").Return(imagine, nil)

	provider := &MockLyricsProvider{name: "genius"}
	provider.On("Search", mock.Anything, mock.Anything).Return(imagineHits, nil)
	provider.On("FetchLines", mock.Anything, "A").Return([]string{"[Intro]", "One", "Two"}, nil)

	o := newTestOrchestrator(t, metadata, provider)

	first, err := o.GetLyrics(context.Background(), "abc123")
	require.NoError(t, err)
	second, err := o.GetLyrics(context.Background(), "abc123")
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, a, b)
}

func TestCleanLines(t *testing.T) {
	tests := []struct {
		name  string
		raw   []string
		clean bool
		want  []string
	}{
		{
			name:  "clean drops annotations and blanks",
			raw:   []string{"[Chorus]", "La la la", "", "[Verse]", "Go now"},
			clean: true,
			want:  []string{"La la la", "Go now"},
		},
		{
			name:  "clean strips inline annotations",
			raw:   []string{"  Hello [x2] world  ", "[Bridge: Someone]"},
			clean: true,
			want:  []string{"Hello  world"},
		},
		{
			name:  "raw keeps lines in order",
			raw:   []string{"[Chorus]", "La la la\r", ""},
			clean: false,
			want:  []string{"[Chorus]", "La la la", ""},
		},
		{
			name:  "empty input",
			raw:   nil,
			clean: true,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanLines(tt.raw, tt.clean))
		})
	}
}
