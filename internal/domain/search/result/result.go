package result

import (
	"maps"
	"slices"
)

// PageRange is an optional page span of a segment. Zero means unknown.
type PageRange struct {
	Start int
	End   int
}

// IsZero reports whether neither bound is known.
func (p PageRange) IsZero() bool { return p.Start == 0 && p.End == 0 }

// Hit is a raw retrieval hit as returned by a knowledge base backend.
type Hit struct {
	DocID      string
	Text       string
	Score      float64
	ChunkStart int
	ChunkEnd   int
	Pages      PageRange
}

// Reference is a single retrieved segment with its resolved document title.
type Reference struct {
	docID    string
	title    string
	text     string
	score    float64
	pages    PageRange
	metadata map[string]string
}

// NewReference creates an immutable document reference.
func NewReference(
	docID, title, text string, score float64,
	pages PageRange, metadata map[string]string,
) Reference {
	return Reference{
		docID: docID, title: title, text: text, score: score,
		pages: pages, metadata: maps.Clone(metadata),
	}
}

// DocID returns the source document identifier.
func (r Reference) DocID() string { return r.docID }

// Title returns the resolved document title.
func (r Reference) Title() string { return r.title }

// Text returns the segment text.
func (r Reference) Text() string { return r.text }

// RelevanceScore returns the segment relevance.
func (r Reference) RelevanceScore() float64 { return r.score }

// Pages returns the segment page span.
func (r Reference) Pages() PageRange { return r.pages }

// Metadata returns a copy of the document metadata.
func (r Reference) Metadata() map[string]string { return maps.Clone(r.metadata) }

// SortByRelevance orders references by descending relevance; ties keep input order.
func SortByRelevance(refs []Reference) {
	slices.SortStableFunc(refs, func(a, b Reference) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
}

// Context is the per-knowledge-base result bundle.
type Context struct {
	kbID         string
	kbTitle      string
	references   []Reference
	mappingScore float64
}

// NewContext creates a context; references must already be sorted by relevance.
func NewContext(kbID, kbTitle string, refs []Reference, mappingScore float64) Context {
	return Context{
		kbID:         kbID,
		kbTitle:      kbTitle,
		references:   slices.Clone(refs),
		mappingScore: mappingScore,
	}
}

// KBID returns the knowledge base identifier.
func (c Context) KBID() string { return c.kbID }

// KBTitle returns the knowledge base title (empty when unknown).
func (c Context) KBTitle() string { return c.kbTitle }

// References returns the ordered segments.
func (c Context) References() []Reference { return c.references }

// MappingScore returns the relevance score that selected this knowledge base.
func (c Context) MappingScore() float64 { return c.mappingScore }

// TotalReferences counts segments across contexts.
func TotalReferences(contexts []Context) int {
	n := 0
	for _, c := range contexts {
		n += len(c.references)
	}
	return n
}
