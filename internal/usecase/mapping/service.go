package mapping

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

// Mapping defaults.
const (
	DefaultMinRelevance = 0.6
	DefaultMaxKBs       = 3
)

// Options bounds the mapping output.
type Options struct {
	MinRelevance float64
	MaxKBs       int
}

// DefaultOptions returns min_relevance 0.6 and at most 3 knowledge bases.
func DefaultOptions() Options {
	return Options{MinRelevance: DefaultMinRelevance, MaxKBs: DefaultMaxKBs}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.MinRelevance < 0 || o.MinRelevance > 1 {
		return domain.Validationf("min_relevance must be between 0 and 1, got %v", o.MinRelevance)
	}
	if o.MaxKBs < 0 {
		return domain.Validationf("max_kbs must be non-negative, got %d", o.MaxKBs)
	}
	return nil
}

// Service maps a query to a ranked, thresholded, capped list of knowledge bases.
type Service struct {
	catalog Catalog
	scorer  Scorer
	logger  *zap.Logger
}

// New creates a mapping service.
func New(catalog Catalog, scorer Scorer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, scorer: scorer, logger: logger}
}

// Map scores the query against the whole catalog and keeps the mappings with
// relevance >= MinRelevance, sorted by descending relevance (stable on scorer order)
// and truncated to MaxKBs. An empty catalog returns no mappings without scoring.
func (s *Service) Map(ctx context.Context, query string, opts Options) ([]dommap.Result, error) {
	if err := request.ValidateQuery(query); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.MappingDuration.Observe(time.Since(start).Seconds()) }()

	catalog, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	if len(catalog) == 0 {
		s.logger.Debug("Empty knowledge base catalog, skipping scorer")
		metrics.MappingResults.Observe(0)
		return nil, nil
	}

	estimates, err := s.scorer.Score(ctx, query, catalog)
	if err != nil {
		return nil, fmt.Errorf("score relevance: %w", err)
	}

	known := kb.Index(catalog)
	seen := make(map[string]struct{}, len(estimates))
	mappings := make([]dommap.Result, 0, len(estimates))
	for _, e := range estimates {
		r, err := dommap.New(e)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed scorer output: %w", domain.ErrValidation, err)
		}
		if _, ok := known[r.KBID()]; !ok {
			s.logger.Debug("Scorer returned unknown knowledge base", zap.String("kb_id", r.KBID()))
			continue
		}
		if _, dup := seen[r.KBID()]; dup {
			continue
		}
		seen[r.KBID()] = struct{}{}
		mappings = append(mappings, r)
	}

	selected := Select(mappings, opts)

	s.logger.Debug("Query mapped to knowledge bases",
		zap.Int("catalog_size", len(catalog)),
		zap.Int("estimates", len(estimates)),
		zap.Int("selected", len(selected)),
	)
	metrics.MappingResults.Observe(float64(len(selected)))

	return selected, nil
}

// AdjustForLanguage applies the language penalty to every mapping whose knowledge base
// language differs from queryLanguage, then restores descending order. It is never part of Map.
func (s *Service) AdjustForLanguage(
	ctx context.Context, mappings []dommap.Result, queryLanguage string,
) ([]dommap.Result, error) {
	if queryLanguage == "" || len(mappings) == 0 {
		return mappings, nil
	}

	catalog, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	known := kb.Index(catalog)

	out := make([]dommap.Result, len(mappings))
	for i, m := range mappings {
		out[i] = m.AdjustForLanguage(queryLanguage, known[m.KBID()].Language())
	}
	sortByRelevance(out)
	return out, nil
}

// Select drops mappings below MinRelevance, stable-sorts by descending relevance and caps at MaxKBs.
func Select(mappings []dommap.Result, opts Options) []dommap.Result {
	kept := make([]dommap.Result, 0, len(mappings))
	for _, m := range mappings {
		if m.RelevanceScore() >= opts.MinRelevance {
			kept = append(kept, m)
		}
	}
	sortByRelevance(kept)
	if len(kept) > opts.MaxKBs {
		kept = kept[:opts.MaxKBs]
	}
	return kept
}

func sortByRelevance(mappings []dommap.Result) {
	slices.SortStableFunc(mappings, func(a, b dommap.Result) int {
		switch {
		case a.RelevanceScore() > b.RelevanceScore():
			return -1
		case a.RelevanceScore() < b.RelevanceScore():
			return 1
		default:
			return 0
		}
	})
}
