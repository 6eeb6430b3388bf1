package db

import "github.com/kailas-cloud/kbroute/internal/domain/search/filter"

// FieldVectorScore is the distance field FT.SEARCH adds to KNN results.
const FieldVectorScore = "__vector_score"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       filter.Metadata
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName    string
	Query        string
	AnyTerm      bool // match any query term instead of all
	Filter       filter.Metadata
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search. Entries keep the engine's rank order.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
