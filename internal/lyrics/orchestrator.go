// Package lyrics drives the local lyrics pipeline: metadata lookup, provider
// search, best-match selection, page fetch and line cleanup.
package lyrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"lyrics-relay/internal/domain"
	"lyrics-relay/internal/matcher"
	"lyrics-relay/internal/metrics"
)

// annotationPattern matches bracketed non-sung annotations such as [Chorus].
var annotationPattern = regexp.MustCompile(`\[[^\]]*\]`)

// Config holds orchestrator settings.
type Config struct {
	// MaxCandidates caps the song hits considered. <= 0 means the default.
	MaxCandidates int
	// MaxDistance rejects matches whose combined distance exceeds it. 0 disables it.
	MaxDistance int
	// CleanMode strips bracketed annotations and empty lines.
	CleanMode bool
	// CallTimeout bounds each collaborator call.
	CallTimeout time.Duration

	Language string
	IsRTL    bool
	Colors   domain.Colors
}

// DefaultConfig returns the default orchestrator settings.
func DefaultConfig() Config {
	return Config{
		MaxCandidates: matcher.DefaultMaxCandidates,
		CleanMode:     true,
		CallTimeout:   10 * time.Second,
		Language:      "en",
		Colors: domain.Colors{
			Background:    -16777216,
			Text:          -8421505,
			HighlightText: -1,
		},
	}
}

// Orchestrator answers local lyrics requests.
type Orchestrator struct {
	metadata  domain.MetadataResolver
	providers []domain.LyricsProvider
	scorer    *matcher.Scorer
	config    Config
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator. Providers are tried in order and
// the first one that yields lyrics wins.
func NewOrchestrator(metadata domain.MetadataResolver, providers []domain.LyricsProvider, config Config, logger *slog.Logger) (*Orchestrator, error) {
	if metadata == nil {
		return nil, errors.New("metadata resolver is required")
	}
	if len(providers) == 0 {
		return nil, domain.ErrNoProviders
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		metadata:  metadata,
		providers: append([]domain.LyricsProvider(nil), providers...),
		scorer:    matcher.NewScorer(config.MaxCandidates, config.MaxDistance),
		config:    config,
		logger:    logger,
	}, nil
}

// GetLyrics returns the lyrics for a track. Every failure is reported as
// domain.ErrLyricsNotFound wrapping the underlying causes.
func (o *Orchestrator) GetLyrics(ctx context.Context, trackID string) (*domain.LyricsPayload, error) {
	start := time.Now()

	identity, err := o.resolve(ctx, trackID)
	if err != nil {
		metrics.RecordLyrics("metadata_failed", "", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: resolve track %s: %w", domain.ErrLyricsNotFound, trackID, err)
	}

	query := identity.SearchQuery()
	causes := []error{domain.ErrLyricsNotFound}
	for _, provider := range o.providers {
		lines, err := o.fromProvider(ctx, provider, identity, query)
		if err != nil {
			o.logger.DebugContext(ctx, "provider yielded no lyrics",
				"provider", provider.Name(),
				"track_id", trackID,
				"error", err)
			causes = append(causes, fmt.Errorf("%s: %w", provider.Name(), err))
			continue
		}

		metrics.RecordLyrics("found", provider.Name(), time.Since(start).Seconds())
		return o.payload(lines, provider.Name()), nil
	}

	metrics.RecordLyrics("not_found", "", time.Since(start).Seconds())
	return nil, errors.Join(causes...)
}

func (o *Orchestrator) resolve(ctx context.Context, trackID string) (domain.TrackIdentity, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()
	return o.metadata.Resolve(ctx, trackID)
}

// fromProvider runs search, match, fetch and cleanup against one provider.
func (o *Orchestrator) fromProvider(ctx context.Context, provider domain.LyricsProvider, identity domain.TrackIdentity, query string) ([]string, error) {
	searchCtx, cancel := o.callContext(ctx)
	hits, err := provider.Search(searchCtx, query)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hit, ok := o.scorer.PickBest(hits, identity)
	if !ok {
		return nil, fmt.Errorf("%w among %d hits", domain.ErrNoConfidentMatch, len(hits))
	}

	fetchCtx, cancel := o.callContext(ctx)
	raw, err := provider.FetchLines(fetchCtx, hit.PageURL)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", hit.PageURL, err)
	}

	lines := CleanLines(raw, o.config.CleanMode)
	if !hasText(lines) {
		return nil, fmt.Errorf("%s: %w", hit.PageURL, domain.ErrNoLyricsLines)
	}
	return lines, nil
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.config.CallTimeout)
}

func (o *Orchestrator) payload(texts []string, provider string) *domain.LyricsPayload {
	lines := make([]domain.LyricsLine, len(texts))
	for i, text := range texts {
		lines[i] = domain.LyricsLine{Text: text, StartTimeMs: 0}
	}
	return &domain.LyricsPayload{
		Language: o.config.Language,
		IsRTL:    o.config.IsRTL,
		Colors:   o.config.Colors,
		Lines:    lines,
		Provider: provider,
	}
}

// CleanLines normalizes provider lines. In clean mode bracketed annotations
// are removed, lines are trimmed and empty ones dropped. Otherwise only
// trailing carriage returns are removed.
func CleanLines(raw []string, clean bool) []string {
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if !clean {
			out = append(out, strings.TrimRight(line, "\r"))
			continue
		}
		line = strings.TrimSpace(annotationPattern.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func hasText(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return true
		}
	}
	return false
}
