package retrieve

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
	"github.com/kailas-cloud/kbroute/internal/domain/search/scope"
	"github.com/kailas-cloud/kbroute/internal/logger"
	mappinguc "github.com/kailas-cloud/kbroute/internal/usecase/mapping"
)

// Outcome summarises how a query was answered.
type Outcome string

// Query outcomes.
const (
	OutcomeFound        Outcome = "found"
	OutcomeReformulated Outcome = "reformulated"
	OutcomeNoKB         Outcome = "no_kb"
	OutcomeNoResults    Outcome = "no_results"
)

// Options tunes a single query.
type Options struct {
	// Scope bypasses mapping when it has filters.
	Scope scope.Scope
	// Language enables the knowledge base language adjustment when set.
	Language string
	Mapping  mappinguc.Options
	// Search is the base config scaled per knowledge base. Nil uses the searcher defaults.
	Search *request.Config
}

// Response is the outcome of one query.
type Response struct {
	QueryID           string
	Query             string
	ReformulatedQuery string
	Outcome           Outcome
	Mappings          []dommap.Result
	Contexts          []result.Context
	Context           string
}

// Service runs the full query pipeline: mapping, multi knowledge base search and
// reformulation of queries that found nothing.
// It logs through the request logger carried by the context.
type Service struct {
	mapper      Mapper
	coordinator Coordinator
}

// New creates a query pipeline.
func New(mapper Mapper, coordinator Coordinator) *Service {
	return &Service{mapper: mapper, coordinator: coordinator}
}

// Process answers a query. Queries that map to no knowledge base or find nothing
// return an empty response with the matching outcome, not an error.
func (s *Service) Process(ctx context.Context, query string, opts Options) (*Response, error) {
	resp := &Response{QueryID: uuid.NewString(), Query: query}
	log := logger.FromContext(ctx).With(zap.String("query_id", resp.QueryID))

	if opts.Scope.HasFilters() {
		contexts, err := s.coordinator.FilteredSearch(ctx, query, opts.Scope, opts.Search)
		if err != nil {
			return nil, fmt.Errorf("filtered search: %w", err)
		}
		return finish(log, resp, contexts, OutcomeFound), nil
	}

	mappings, err := s.mapper.Map(ctx, query, opts.Mapping)
	if err != nil {
		return nil, fmt.Errorf("map query: %w", err)
	}
	if opts.Language != "" {
		mappings, err = s.mapper.AdjustForLanguage(ctx, mappings, opts.Language)
		if err != nil {
			return nil, fmt.Errorf("adjust for language: %w", err)
		}
	}
	resp.Mappings = mappings
	if len(mappings) == 0 {
		log.Info("No knowledge base matched the query")
		resp.Outcome = OutcomeNoKB
		return resp, nil
	}

	contexts, err := s.coordinator.MultiSearch(ctx, query, mappings, opts.Search)
	if err != nil {
		return nil, fmt.Errorf("multi search: %w", err)
	}
	if len(contexts) > 0 {
		return finish(log, resp, contexts, OutcomeFound), nil
	}

	for _, q := range Reformulations(query) {
		log.Info("No results, retrying with reformulated query", zap.String("reformulated", q))
		contexts, err = s.coordinator.MultiSearch(ctx, q, mappings, opts.Search)
		if err != nil {
			return nil, fmt.Errorf("multi search reformulated: %w", err)
		}
		if len(contexts) > 0 {
			resp.ReformulatedQuery = q
			return finish(log, resp, contexts, OutcomeReformulated), nil
		}
	}

	log.Info("No results for query", zap.Int("mapped_kbs", len(mappings)))
	resp.Outcome = OutcomeNoResults
	return resp, nil
}

func finish(log *zap.Logger, resp *Response, contexts []result.Context, found Outcome) *Response {
	if len(contexts) == 0 {
		resp.Outcome = OutcomeNoResults
		return resp
	}
	resp.Outcome = found
	resp.Contexts = contexts
	resp.Context = BuildContext(contexts)
	log.Debug("Query answered",
		zap.String("outcome", string(found)),
		zap.Int("contexts", len(contexts)),
		zap.Int("references", result.TotalReferences(contexts)),
	)
	return resp
}
