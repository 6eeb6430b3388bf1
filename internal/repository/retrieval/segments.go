package retrieval

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/kailas-cloud/kbroute/internal/domain/search/profile"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
)

// chunk is one indexed chunk returned by the engine. rank is its 0-based position
// in the engine's result list.
type chunk struct {
	docID     string
	index     int
	text      string
	score     float64
	pageStart int
	pageEnd   int
	rank      int
}

// value is the chunk's contribution to a segment: rank-decayed relevance minus the
// irrelevance penalty. Negative values pull a segment down.
func (c chunk) value(p profile.Profile) float64 {
	decay := 1.0
	if p.DecayRate > 0 {
		decay = math.Exp(-float64(c.rank) / p.DecayRate)
	}
	return c.score*decay - p.IrrelevantChunkPenalty
}

type segment struct {
	chunks []chunk
	value  float64
	rank   int // best rank among its chunks
}

// extractSegments groups adjacent chunks of the same document into segments of at
// most p.MaxLength chunks, drops segments valued below p.MinimumValue and returns the
// best segments that fit in p.ChunkBudget(), best first.
func extractSegments(chunks []chunk, p profile.Profile) []result.Hit {
	if len(chunks) == 0 || p.MaxLength <= 0 {
		return nil
	}

	byDoc := make(map[string][]chunk)
	var docs []string
	for _, c := range chunks {
		if _, ok := byDoc[c.docID]; !ok {
			docs = append(docs, c.docID)
		}
		byDoc[c.docID] = append(byDoc[c.docID], c)
	}

	var segs []segment
	for _, doc := range docs {
		dc := byDoc[doc]
		slices.SortFunc(dc, func(a, b chunk) int { return cmp.Compare(a.index, b.index) })
		dc = slices.CompactFunc(dc, func(a, b chunk) bool { return a.index == b.index })

		start := 0
		for i := 1; i <= len(dc); i++ {
			if i < len(dc) && dc[i].index == dc[i-1].index+1 && i-start < p.MaxLength {
				continue
			}
			segs = append(segs, newSegment(dc[start:i], p))
			start = i
		}
	}

	segs = slices.DeleteFunc(segs, func(s segment) bool { return s.value < p.MinimumValue })
	slices.SortStableFunc(segs, func(a, b segment) int {
		if c := cmp.Compare(b.value, a.value); c != 0 {
			return c
		}
		return cmp.Compare(a.rank, b.rank)
	})

	budget := p.ChunkBudget()
	used := 0
	var hits []result.Hit
	for _, s := range segs {
		if used+len(s.chunks) > budget {
			continue
		}
		used += len(s.chunks)
		hits = append(hits, s.hit())
	}
	return hits
}

func newSegment(chunks []chunk, p profile.Profile) segment {
	s := segment{chunks: chunks, rank: math.MaxInt}
	for _, c := range chunks {
		s.value += c.value(p)
		s.rank = min(s.rank, c.rank)
	}
	return s
}

func (s segment) hit() result.Hit {
	texts := make([]string, len(s.chunks))
	var sum float64
	var pages result.PageRange
	for i, c := range s.chunks {
		texts[i] = c.text
		sum += c.score
		if c.pageStart > 0 && (pages.Start == 0 || c.pageStart < pages.Start) {
			pages.Start = c.pageStart
		}
		pages.End = max(pages.End, c.pageEnd)
	}
	first, last := s.chunks[0], s.chunks[len(s.chunks)-1]
	return result.Hit{
		DocID:      first.docID,
		Text:       strings.Join(texts, "\n"),
		Score:      clamp01(sum / float64(len(s.chunks))),
		ChunkStart: first.index,
		ChunkEnd:   last.index,
		Pages:      pages,
	}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
