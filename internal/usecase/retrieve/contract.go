package retrieve

import (
	"context"

	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
	"github.com/kailas-cloud/kbroute/internal/domain/search/scope"
	mappinguc "github.com/kailas-cloud/kbroute/internal/usecase/mapping"
)

// Mapper selects knowledge bases for a query.
type Mapper interface {
	Map(ctx context.Context, query string, opts mappinguc.Options) ([]dommap.Result, error)
	AdjustForLanguage(ctx context.Context, mappings []dommap.Result, queryLanguage string) ([]dommap.Result, error)
}

// Coordinator searches several knowledge bases.
type Coordinator interface {
	MultiSearch(
		ctx context.Context, query string, mappings []dommap.Result, base *request.Config,
	) ([]result.Context, error)
	FilteredSearch(ctx context.Context, query string, sc scope.Scope, base *request.Config) ([]result.Context, error)
}
