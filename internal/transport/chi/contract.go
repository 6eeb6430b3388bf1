package chi

import (
	"context"

	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/kbroute/internal/usecase/health"
	mappinguc "github.com/kailas-cloud/kbroute/internal/usecase/mapping"
	retrieveuc "github.com/kailas-cloud/kbroute/internal/usecase/retrieve"
	searchuc "github.com/kailas-cloud/kbroute/internal/usecase/search"
)

// Catalog lists and resolves knowledge bases.
type Catalog interface {
	List(ctx context.Context) ([]kb.Descriptor, error)
	Get(ctx context.Context, id string) (kb.Descriptor, error)
	Resolve(ctx context.Context, id string) (searchuc.Handle, error)
}

// Mapper maps queries to knowledge bases.
type Mapper interface {
	Map(ctx context.Context, query string, opts mappinguc.Options) ([]dommap.Result, error)
	AdjustForLanguage(ctx context.Context, mappings []dommap.Result, queryLanguage string) ([]dommap.Result, error)
}

// Searcher runs adaptive search on one knowledge base.
type Searcher interface {
	Search(
		ctx context.Context, query string, h searchuc.Handle, f filter.Metadata, cfg *request.Config,
	) ([]result.Reference, error)
}

// Pipeline answers a query end to end.
type Pipeline interface {
	Process(ctx context.Context, query string, opts retrieveuc.Options) (*retrieveuc.Response, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
