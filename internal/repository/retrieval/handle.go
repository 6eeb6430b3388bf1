package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/db"
	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
	"github.com/kailas-cloud/kbroute/internal/domain/search/profile"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
)

// Chunk hash fields.
const (
	FieldContent   = "__content"
	FieldChunk     = "chunk_index"
	FieldPageStart = "page_start"
	FieldPageEnd   = "page_end"
	FieldTitle     = "title"
)

var returnFields = []string{FieldContent, filter.DocIDField, FieldChunk, FieldPageStart, FieldPageEnd}

// knnReturnFields adds the distance FT.SEARCH computes for the KNN clause.
var knnReturnFields = append(append([]string{}, returnFields...), db.FieldVectorScore)

// store is the consumer interface for knowledge base retrieval (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Handle queries one knowledge base stored as chunk hashes behind an FT index.
// With an embedder it runs KNN over __vector, otherwise BM25 over __content.
type Handle struct {
	store     store
	embedder  domain.Embedder
	keyPrefix string
	kb        kb.Descriptor
	logger    *zap.Logger
}

// New creates a handle. embedder may be nil.
func New(s store, embedder domain.Embedder, keyPrefix string, d kb.Descriptor, logger *zap.Logger) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handle{store: s, embedder: embedder, keyPrefix: keyPrefix, kb: d, logger: logger}
}

// IndexName returns the FT index of a knowledge base.
func IndexName(keyPrefix, kbID string) string { return keyPrefix + kbID + ":idx" }

// DocumentKey returns the hash key of a document's metadata.
func DocumentKey(keyPrefix, kbID, docID string) string {
	return keyPrefix + kbID + ":doc:" + docID
}

// ID returns the knowledge base identifier.
func (h *Handle) ID() string { return h.kb.ID() }

// Title returns the knowledge base title.
func (h *Handle) Title() string { return h.kb.Title() }

// Query retrieves candidate chunks and extracts the segments p allows.
func (h *Handle) Query(ctx context.Context, query string, f filter.Metadata, p profile.Profile) ([]result.Hit, error) {
	k := p.CandidateChunks()
	if k <= 0 {
		return nil, nil
	}

	sr, err := h.search(ctx, query, f, k)
	if err != nil {
		return nil, err
	}
	chunks := h.toChunks(sr)

	hits := extractSegments(chunks, p)
	h.logger.Debug("segments extracted",
		zap.String("kb", h.kb.ID()),
		zap.String("mode", string(p.Mode)),
		zap.Int("chunks", len(chunks)),
		zap.Int("segments", len(hits)),
	)
	return hits, nil
}

func (h *Handle) search(ctx context.Context, query string, f filter.Metadata, k int) (*db.SearchResult, error) {
	index := IndexName(h.keyPrefix, h.kb.ID())

	if h.embedder != nil {
		emb, err := h.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		sr, err := h.store.SearchKNN(ctx, &db.KNNQuery{
			IndexName:    index,
			Filter:       f,
			Vector:       emb.Embedding,
			K:            k,
			ReturnFields: knnReturnFields,
		})
		if err != nil {
			return nil, fmt.Errorf("search knn %s: %w", h.kb.ID(), err)
		}
		return sr, nil
	}

	sr, err := h.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    index,
		Query:        query,
		AnyTerm:      true,
		Filter:       f,
		TopK:         k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search bm25 %s: %w", h.kb.ID(), err)
	}
	normalizeScores(sr)
	return sr, nil
}

// normalizeScores rescales unbounded BM25 scores into [0,1] by the top score.
func normalizeScores(sr *db.SearchResult) {
	if sr == nil {
		return
	}
	var top float64
	for _, e := range sr.Entries {
		top = max(top, e.Score)
	}
	if top <= 0 {
		return
	}
	for i := range sr.Entries {
		sr.Entries[i].Score /= top
	}
}

// toChunks parses entries in engine order. Document id and chunk index fall back to
// the <doc>:<n> suffix of the key.
func (h *Handle) toChunks(sr *db.SearchResult) []chunk {
	if sr == nil {
		return nil
	}
	prefix := h.keyPrefix + h.kb.ID() + ":chunk:"
	chunks := make([]chunk, 0, len(sr.Entries))
	for rank, e := range sr.Entries {
		keyDoc, keyIdx := strings.TrimPrefix(e.Key, prefix), ""
		if i := strings.LastIndex(keyDoc, ":"); i > 0 {
			keyDoc, keyIdx = keyDoc[:i], keyDoc[i+1:]
		}

		c := chunk{
			docID: e.Fields[filter.DocIDField],
			text:  e.Fields[FieldContent],
			score: e.Score,
			rank:  rank,
		}
		if c.docID == "" {
			c.docID = keyDoc
		}
		c.index = atoi(e.Fields[FieldChunk], atoi(keyIdx, rank))
		c.pageStart = atoi(e.Fields[FieldPageStart], 0)
		c.pageEnd = atoi(e.Fields[FieldPageEnd], c.pageStart)
		chunks = append(chunks, c)
	}
	return chunks
}

// Document reads the document hash. A missing document yields an empty title and metadata.
func (h *Handle) Document(ctx context.Context, docID string, _ int) (string, map[string]string, error) {
	fields, err := h.store.HGetAll(ctx, DocumentKey(h.keyPrefix, h.kb.ID(), docID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", map[string]string{}, nil
		}
		return "", nil, fmt.Errorf("get document %s: %w", docID, err)
	}
	title := fields[FieldTitle]
	meta := make(map[string]string, len(fields))
	for k, v := range fields {
		if k != FieldTitle {
			meta[k] = v
		}
	}
	return title, meta, nil
}

func atoi(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
