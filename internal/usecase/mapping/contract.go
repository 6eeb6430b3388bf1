package mapping

import (
	"context"

	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
)

// Catalog lists every known knowledge base.
type Catalog interface {
	List(ctx context.Context) ([]kb.Descriptor, error)
}

// Scorer estimates per-KB relevance of a query against the catalog in one call.
type Scorer interface {
	Score(ctx context.Context, query string, catalog []kb.Descriptor) ([]dommap.Estimate, error)
}
