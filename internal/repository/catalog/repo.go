package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/db"
	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	"github.com/kailas-cloud/kbroute/internal/repository/retrieval"
	searchuc "github.com/kailas-cloud/kbroute/internal/usecase/search"
)

// Knowledge base hash fields.
const (
	fieldID          = "id"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldLanguage    = "language"
)

// store is the consumer interface for the catalog and the handles it resolves (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo lists knowledge bases and resolves them into retrieval handles.
type Repo struct {
	store     store
	embedder  domain.Embedder
	keyPrefix string
	logger    *zap.Logger
}

// New creates a catalog repository. embedder may be nil, in which case handles use BM25.
func New(s store, embedder domain.Embedder, keyPrefix string, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, embedder: embedder, keyPrefix: keyPrefix, logger: logger}
}

// List returns all knowledge bases sorted by id.
func (r *Repo) List(ctx context.Context) ([]kb.Descriptor, error) {
	keys, err := r.store.Scan(ctx, r.metaKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan knowledge bases: %w", err)
	}
	// kb:<id> only; deeper keys belong to a knowledge base literally named "kb".
	keys = filterMetaKeys(keys, r.metaKey(""))
	if len(keys) == 0 {
		return []kb.Descriptor{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi knowledge bases: %w", err)
	}

	out := make([]kb.Descriptor, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		d, err := fromHash(strings.TrimPrefix(keys[i], r.metaKey("")), m)
		if err != nil {
			r.logger.Warn("Skipping malformed knowledge base", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Get returns one knowledge base or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id string) (kb.Descriptor, error) {
	m, err := r.store.HGetAll(ctx, r.metaKey(id))
	if err != nil {
		return kb.Descriptor{}, fmt.Errorf("hgetall knowledge base %s: %w", id, err)
	}
	if len(m) == 0 {
		return kb.Descriptor{}, domain.ErrNotFound
	}
	return fromHash(id, m)
}

// Resolve returns a retrieval handle. A missing descriptor or index is domain.ErrKBUnavailable.
func (r *Repo) Resolve(ctx context.Context, id string) (searchuc.Handle, error) {
	h, err := r.Handle(ctx, id)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Handle is Resolve with the concrete handle type.
func (r *Repo) Handle(ctx context.Context, id string) (*retrieval.Handle, error) {
	d, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrKBUnavailable, id)
		}
		return nil, err
	}

	ok, err := r.store.IndexExists(ctx, retrieval.IndexName(r.keyPrefix, id))
	if err != nil {
		return nil, fmt.Errorf("check index %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s has no index", domain.ErrKBUnavailable, id)
	}

	return retrieval.New(r.store, r.embedder, r.keyPrefix, d, r.logger), nil
}

// Redis key patterns: <prefix>kb:{id}, <prefix>{id}:idx, <prefix>{id}:chunk:*, <prefix>{id}:doc:*

func (r *Repo) metaKey(id string) string {
	return r.keyPrefix + "kb:" + id
}

func filterMetaKeys(keys []string, prefix string) []string {
	out := keys[:0]
	for _, k := range keys {
		if !strings.Contains(strings.TrimPrefix(k, prefix), ":") {
			out = append(out, k)
		}
	}
	return out
}

// fromHash builds a descriptor under the id taken from its key. Index and chunk
// keys derive from that id, so a stored id field naming another one is rejected.
func fromHash(id string, m map[string]string) (kb.Descriptor, error) {
	if v := m[fieldID]; v != "" && v != id {
		return kb.Descriptor{}, fmt.Errorf("knowledge base %s: hash id %q does not match key", id, v)
	}
	d, err := kb.New(id, m[fieldTitle], m[fieldDescription], m[fieldLanguage])
	if err != nil {
		return kb.Descriptor{}, fmt.Errorf("parse knowledge base %s: %w", id, err)
	}
	return d, nil
}
