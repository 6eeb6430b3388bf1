package search

import (
	"context"

	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
	"github.com/kailas-cloud/kbroute/internal/domain/search/profile"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
)

// Handle is a queryable knowledge base.
type Handle interface {
	// ID returns the knowledge base identifier.
	ID() string
	// Query runs one retrieval call shaped by p. An empty f means unrestricted.
	Query(ctx context.Context, query string, f filter.Metadata, p profile.Profile) ([]result.Hit, error)
	// Document resolves the title and metadata of the document a hit came from.
	Document(ctx context.Context, docID string, chunkStart int) (title string, metadata map[string]string, err error)
}
