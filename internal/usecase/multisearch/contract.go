package multisearch

import (
	"context"

	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/kbroute/internal/usecase/search"
)

// Resolver turns a knowledge base id into a queryable handle.
// A missing knowledge base is reported as domain.ErrKBUnavailable.
type Resolver interface {
	Resolve(ctx context.Context, kbID string) (searchuc.Handle, error)
}

// Searcher runs adaptive retrieval against one handle.
type Searcher interface {
	Search(
		ctx context.Context, query string, h searchuc.Handle, f filter.Metadata, cfg *request.Config,
	) ([]result.Reference, error)
}
