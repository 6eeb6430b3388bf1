package request

import (
	"fmt"

	"github.com/kailas-cloud/kbroute/internal/domain/search/mode"
)

// Search config defaults.
const (
	DefaultMode              = mode.Balanced
	DefaultMinRelevance      = 0.6
	DefaultMaxSegmentsPerDoc = 3
	DefaultAdaptiveRecall    = true
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
)

// Config is a validated per-call search configuration. Values are immutable;
// derived configs are new values.
type Config struct {
	searchMode        mode.Mode
	minRelevance      float64
	maxSegmentsPerDoc int
	adaptiveRecall    bool
}

// NewConfig validates search parameters. An empty mode defaults to balanced.
// maxSegmentsPerDoc = 0 means unlimited.
func NewConfig(m mode.Mode, minRelevance float64, maxSegmentsPerDoc int, adaptiveRecall bool) (Config, error) {
	if m == "" {
		m = DefaultMode
	}
	if !m.IsValid() {
		return Config{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if minRelevance < 0 || minRelevance > 1 {
		return Config{}, fmt.Errorf("min_relevance must be between 0 and 1")
	}
	if maxSegmentsPerDoc < 0 {
		return Config{}, fmt.Errorf("max_segments_per_doc must be non-negative")
	}
	return Config{
		searchMode:        m,
		minRelevance:      minRelevance,
		maxSegmentsPerDoc: maxSegmentsPerDoc,
		adaptiveRecall:    adaptiveRecall,
	}, nil
}

// DefaultConfig returns balanced mode, min_relevance 0.6, 3 segments per document, adaptive recall on.
func DefaultConfig() Config {
	return Config{
		searchMode:        DefaultMode,
		minRelevance:      DefaultMinRelevance,
		maxSegmentsPerDoc: DefaultMaxSegmentsPerDoc,
		adaptiveRecall:    DefaultAdaptiveRecall,
	}
}

// Mode returns the starting search mode.
func (c Config) Mode() mode.Mode { return c.searchMode }

// MinRelevance returns the minimum relevance a reference needs to be kept.
func (c Config) MinRelevance() float64 { return c.minRelevance }

// MaxSegmentsPerDoc returns the per-document cap (0 = unlimited).
func (c Config) MaxSegmentsPerDoc() int { return c.maxSegmentsPerDoc }

// AdaptiveRecall reports whether empty results escalate to broader profiles.
func (c Config) AdaptiveRecall() bool { return c.adaptiveRecall }

// ScaledBy derives a config whose min_relevance is multiplied by a mapping score.
// Other fields are copied unchanged; the receiver is not modified.
func (c Config) ScaledBy(score float64) Config {
	out := c
	out.minRelevance = clamp01(c.minRelevance * score)
	return out
}

// ValidateQuery checks a query string before it reaches any backend.
func ValidateQuery(query string) error {
	if query == "" {
		return fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	return nil
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}
