package mapping

import (
	"fmt"
	"maps"
)

// Factor names a confidence sub-score reported by the relevance scorer.
type Factor string

// Confidence factors every scorer estimate must carry.
const (
	TopicMatch       Factor = "topic_match"
	SpecificityMatch Factor = "specificity_match"
	Coverage         Factor = "coverage"
	ContextRelevance Factor = "context_relevance"
)

// RequiredFactors lists the factors in reporting order.
var RequiredFactors = []Factor{TopicMatch, SpecificityMatch, Coverage, ContextRelevance}

// LanguagePenalty is the multiplier applied when the KB language differs from the query language.
const LanguagePenalty = 0.9

// LanguageNote is appended to the reasoning of a language-adjusted mapping.
const LanguageNote = " [adjusted: knowledge base language differs from query]"

// Estimate is the raw, unvalidated scorer output for one knowledge base.
type Estimate struct {
	KBID           string
	RelevanceScore float64
	Reasoning      string
	Factors        map[Factor]float64
}

// Result is a validated query-to-KB mapping. Scores are always within [0,1].
type Result struct {
	kbID      string
	score     float64
	reasoning string
	factors   map[Factor]float64
}

// New validates an estimate and creates a Result with clamped scores.
func New(e Estimate) (Result, error) {
	if e.KBID == "" {
		return Result{}, fmt.Errorf("kb_id is required")
	}
	factors := make(map[Factor]float64, len(RequiredFactors))
	for _, f := range RequiredFactors {
		v, ok := e.Factors[f]
		if !ok {
			return Result{}, fmt.Errorf("confidence factor %q missing for kb %q", f, e.KBID)
		}
		factors[f] = Clamp(v)
	}
	return Result{
		kbID:      e.KBID,
		score:     Clamp(e.RelevanceScore),
		reasoning: e.Reasoning,
		factors:   factors,
	}, nil
}

// Reconstruct builds a Result from known values without factor validation.
// Score and factors are still clamped to [0, 1].
func Reconstruct(kbID string, score float64, reasoning string, factors map[Factor]float64) Result {
	clamped := make(map[Factor]float64, len(factors))
	for k, v := range factors {
		clamped[k] = Clamp(v)
	}
	return Result{kbID: kbID, score: Clamp(score), reasoning: reasoning, factors: clamped}
}

// KBID returns the mapped knowledge base identifier.
func (r Result) KBID() string { return r.kbID }

// RelevanceScore returns the mapping relevance in [0,1].
func (r Result) RelevanceScore() float64 { return r.score }

// Reasoning returns the scorer's free-text justification.
func (r Result) Reasoning() string { return r.reasoning }

// Factors returns a copy of the confidence factors.
func (r Result) Factors() map[Factor]float64 { return maps.Clone(r.factors) }

// Factor returns a single confidence factor.
func (r Result) Factor(f Factor) (float64, bool) {
	v, ok := r.factors[f]
	return v, ok
}

// AdjustForLanguage returns a copy with the language penalty applied when kbLang differs
// from queryLang. Empty tags on either side mean no adjustment. Factors are left unchanged.
func (r Result) AdjustForLanguage(queryLang, kbLang string) Result {
	if queryLang == "" || kbLang == "" || queryLang == kbLang {
		return r
	}
	out := r
	out.score = Clamp(r.score * LanguagePenalty)
	out.reasoning = r.reasoning + LanguageNote
	return out
}

// Clamp bounds v into [0,1].
func Clamp(v float64) float64 {
	switch {
	case v < 0 || v != v: // NaN
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
