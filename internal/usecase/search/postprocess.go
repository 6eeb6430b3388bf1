package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
)

type docInfo struct {
	title    string
	metadata map[string]string
}

// toReferences resolves document titles and metadata for every hit, in retrieval order.
// Each document is looked up once per call.
func toReferences(ctx context.Context, h Handle, hits []result.Hit) ([]result.Reference, error) {
	docs := make(map[string]docInfo)
	refs := make([]result.Reference, 0, len(hits))
	for _, hit := range hits {
		info, ok := docs[hit.DocID]
		if !ok {
			title, metadata, err := h.Document(ctx, hit.DocID, hit.ChunkStart)
			if err != nil {
				return nil, fmt.Errorf("resolve document %q: %w", hit.DocID, err)
			}
			info = docInfo{title: title, metadata: metadata}
			docs[hit.DocID] = info
		}
		refs = append(refs, result.NewReference(hit.DocID, info.title, hit.Text, hit.Score, hit.Pages, info.metadata))
	}
	return refs, nil
}

// filterAndCap drops references below cfg.MinRelevance, keeps the first
// cfg.MaxSegmentsPerDoc references of each document in retrieval order, then
// sorts the survivors by descending relevance. The cap runs before the sort.
func filterAndCap(refs []result.Reference, cfg request.Config) []result.Reference {
	limit := cfg.MaxSegmentsPerDoc()
	perDoc := make(map[string]int)
	out := make([]result.Reference, 0, len(refs))
	for _, r := range refs {
		if r.RelevanceScore() < cfg.MinRelevance() {
			continue
		}
		if limit > 0 && perDoc[r.DocID()] >= limit {
			continue
		}
		perDoc[r.DocID()]++
		out = append(out, r)
	}
	result.SortByRelevance(out)
	return out
}
