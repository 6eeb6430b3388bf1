package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

// Service runs adaptive retrieval against a single knowledge base.
type Service struct {
	logger *zap.Logger
}

// New creates a search service.
func New(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// Search retrieves references for query from h. A nil cfg uses request.DefaultConfig().
//
// Empty results escalate through broader profiles when adaptive recall is on; backend
// errors are returned as domain.ErrRetrieval without retrying. The context is checked
// before every attempt, so a cancelled search stops escalating.
func (s *Service) Search(
	ctx context.Context, query string, h Handle, f filter.Metadata, cfg *request.Config,
) ([]result.Reference, error) {
	if err := request.ValidateQuery(query); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	c := request.DefaultConfig()
	if cfg != nil {
		c = *cfg
	}

	plan, err := Plan(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	log := s.logger.With(zap.String("kb_id", h.ID()))
	esc := newEscalation(plan)

	var hits []result.Hit
	for {
		p, ok := esc.attempt()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			if esc.escalated() {
				metrics.SearchEscalationsTotal.WithLabelValues("cancelled").Inc()
			}
			return nil, fmt.Errorf("search kb %q: %w", h.ID(), err)
		}
		if esc.state == stateEscalate {
			log.Info("No results, escalating search profile",
				zap.String("mode", string(p.Mode)),
				zap.Float64("minimum_value", p.MinimumValue),
				zap.Int("overall_max_length", p.OverallMaxLength),
			)
		}

		hits, err = h.Query(ctx, query, f, p)
		if err != nil {
			metrics.RetrievalAttemptsTotal.WithLabelValues(string(p.Mode), "error").Inc()
			return nil, domain.NewRetrievalError(h.ID(), err)
		}
		log.Debug("Retrieval attempt",
			zap.String("mode", string(p.Mode)),
			zap.Bool("loosened", p.Loosened),
			zap.Int("hits", len(hits)),
		)
		metrics.RetrievalAttemptsTotal.WithLabelValues(string(p.Mode), outcome(len(hits))).Inc()
		esc.record(len(hits))
		if esc.state == stateDone {
			break
		}
	}

	if esc.escalated() {
		if len(hits) > 0 {
			metrics.SearchEscalationsTotal.WithLabelValues("recovered").Inc()
		} else {
			metrics.SearchEscalationsTotal.WithLabelValues("exhausted").Inc()
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	refs, err := toReferences(ctx, h, hits)
	if err != nil {
		return nil, domain.NewRetrievalError(h.ID(), err)
	}
	return filterAndCap(refs, c), nil
}

func outcome(hits int) string {
	if hits > 0 {
		return "hits"
	}
	return "empty"
}
