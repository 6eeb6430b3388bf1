package scope

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
)

// Scope restricts a query to explicit knowledge bases and, optionally, documents.
// The zero value has no filters and lets the mapper choose knowledge bases.
type Scope struct {
	kbIDs  []string
	docIDs map[string][]string
}

// New creates a scope. When kbIDs is empty, the keys of docIDs (sorted) select the KBs.
func New(kbIDs []string, docIDs map[string][]string) (Scope, error) {
	for _, id := range kbIDs {
		if id == "" {
			return Scope{}, fmt.Errorf("empty knowledge base id in scope")
		}
	}
	docs := make(map[string][]string, len(docIDs))
	for kb, ids := range docIDs {
		if kb == "" {
			return Scope{}, fmt.Errorf("empty knowledge base id in document scope")
		}
		if len(ids) > filter.MaxValues {
			return Scope{}, fmt.Errorf("too many documents for kb %q (max %d)", kb, filter.MaxValues)
		}
		if len(ids) > 0 {
			docs[kb] = slices.Clone(ids)
		}
	}
	return Scope{kbIDs: slices.Clone(kbIDs), docIDs: docs}, nil
}

// HasFilters reports whether the scope restricts the search at all.
func (s Scope) HasFilters() bool {
	return len(s.kbIDs) > 0 || len(s.docIDs) > 0
}

// KBIDs returns the knowledge bases to search.
func (s Scope) KBIDs() []string {
	if len(s.kbIDs) > 0 {
		return s.kbIDs
	}
	ids := make([]string, 0, len(s.docIDs))
	for kb := range s.docIDs {
		ids = append(ids, kb)
	}
	slices.Sort(ids)
	return ids
}

// DocIDs returns the document restriction for a KB (nil when unrestricted).
func (s Scope) DocIDs(kbID string) []string {
	return s.docIDs[kbID]
}

// MetadataFilter returns the doc_id filter for a KB, or an empty filter when unrestricted.
func (s Scope) MetadataFilter(kbID string) (filter.Metadata, error) {
	ids := s.docIDs[kbID]
	if len(ids) == 0 {
		return filter.Metadata{}, nil
	}
	f, err := filter.DocumentIn(ids)
	if err != nil {
		return filter.Metadata{}, fmt.Errorf("document filter for kb %q: %w", kbID, err)
	}
	return f, nil
}
