package multisearch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/kbroute/internal/domain"
	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
	"github.com/kailas-cloud/kbroute/internal/domain/search/scope"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

// ScopedMappingScore is the mapping score of knowledge bases chosen explicitly by the caller.
const ScopedMappingScore = 1.0

// titled is implemented by handles that know their knowledge base title.
type titled interface {
	Title() string
}

// job is one knowledge base to search.
type job struct {
	kbID   string
	score  float64
	filter filter.Metadata
}

// Service fans adaptive search out across knowledge bases.
type Service struct {
	resolver    Resolver
	searcher    Searcher
	concurrency int
	logger      *zap.Logger
}

// New creates a coordinator that searches one knowledge base at a time.
func New(resolver Resolver, searcher Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{resolver: resolver, searcher: searcher, concurrency: 1, logger: logger}
}

// WithConcurrency returns a copy that searches up to n knowledge bases at once. n < 1 means 1.
func (s *Service) WithConcurrency(n int) *Service {
	out := *s
	out.concurrency = max(1, n)
	return &out
}

// MultiSearch searches every mapped knowledge base and returns one context per knowledge base
// that produced references, in mapping order.
//
// When base is set, each knowledge base is searched with base.ScaledBy(mapping score); otherwise
// the searcher's defaults apply. Unresolvable knowledge bases are skipped. The first retrieval
// error is returned and partial results are discarded.
func (s *Service) MultiSearch(
	ctx context.Context, query string, mappings []dommap.Result, base *request.Config,
) ([]result.Context, error) {
	jobs := make([]job, len(mappings))
	for i, m := range mappings {
		jobs[i] = job{kbID: m.KBID(), score: m.RelevanceScore()}
	}
	return s.run(ctx, query, jobs, base)
}

// FilteredSearch searches the knowledge bases named by sc without mapping. Document
// restrictions become doc_id filters and every context carries ScopedMappingScore.
func (s *Service) FilteredSearch(
	ctx context.Context, query string, sc scope.Scope, base *request.Config,
) ([]result.Context, error) {
	kbIDs := sc.KBIDs()
	jobs := make([]job, 0, len(kbIDs))
	for _, id := range kbIDs {
		f, err := sc.MetadataFilter(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		jobs = append(jobs, job{kbID: id, score: ScopedMappingScore, filter: f})
	}
	return s.run(ctx, query, jobs, base)
}

func (s *Service) run(
	ctx context.Context, query string, jobs []job, base *request.Config,
) ([]result.Context, error) {
	slots := make([]*result.Context, len(jobs))

	if s.concurrency <= 1 || len(jobs) <= 1 {
		for i, j := range jobs {
			c, err := s.searchOne(ctx, query, j, base)
			if err != nil {
				return nil, err
			}
			slots[i] = c
		}
		return collect(slots), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			c, err := s.searchOne(gctx, query, j, base)
			if err != nil {
				return err
			}
			slots[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return collect(slots), nil
}

// searchOne returns nil without error when the knowledge base is unavailable or yields nothing.
func (s *Service) searchOne(
	ctx context.Context, query string, j job, base *request.Config,
) (*result.Context, error) {
	h, err := s.resolver.Resolve(ctx, j.kbID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("resolve kb %q: %w", j.kbID, ctxErr)
		}
		if !errors.Is(err, domain.ErrKBUnavailable) {
			s.logger.Warn("Knowledge base resolution failed", zap.String("kb_id", j.kbID), zap.Error(err))
		} else {
			s.logger.Warn("Knowledge base unavailable, skipping", zap.String("kb_id", j.kbID))
		}
		metrics.KBUnavailableTotal.Inc()
		return nil, nil
	}

	var cfg *request.Config
	if base != nil {
		scaled := base.ScaledBy(j.score)
		cfg = &scaled
	}

	refs, err := s.searcher.Search(ctx, query, h, j.filter, cfg)
	if err != nil {
		return nil, fmt.Errorf("search kb %q: %w", j.kbID, err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	var title string
	if t, ok := h.(titled); ok {
		title = t.Title()
	}
	c := result.NewContext(j.kbID, title, refs, j.score)
	return &c, nil
}

func collect(slots []*result.Context) []result.Context {
	out := make([]result.Context, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}
