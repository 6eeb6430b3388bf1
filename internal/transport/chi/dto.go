package chi

import (
	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
	retrieveuc "github.com/kailas-cloud/kbroute/internal/usecase/retrieve"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeUnauthorized      = "unauthorized"
	codeNotFound          = "kb_not_found"
	codeKBUnavailable     = "kb_unavailable"
	codeRetrievalFailed   = "retrieval_failed"
	codeScorerUnavailable = "scorer_unavailable"
	codeEmbeddingProvider = "embedding_provider_error"
	codeInternalError     = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type kbResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Language    string `json:"language,omitempty"`
}

type kbListResponse struct {
	Items []kbResponse `json:"items"`
	Total int          `json:"total"`
}

type mapRequest struct {
	Query        string   `json:"query"`
	MinRelevance *float64 `json:"min_relevance,omitempty"`
	MaxKBs       *int     `json:"max_kbs,omitempty"`
	Language     string   `json:"language,omitempty"`
}

type mappingResponse struct {
	KBID              string             `json:"kb_id"`
	RelevanceScore    float64            `json:"relevance_score"`
	Reasoning         string             `json:"reasoning"`
	ConfidenceFactors map[string]float64 `json:"confidence_factors"`
}

type mapResponse struct {
	Items []mappingResponse `json:"items"`
}

type filterRequest struct {
	Field    string `json:"field"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value"`
}

type searchRequest struct {
	Query             string         `json:"query"`
	Mode              string         `json:"mode,omitempty"`
	MinRelevance      *float64       `json:"min_relevance,omitempty"`
	MaxSegmentsPerDoc *int           `json:"max_segments_per_doc,omitempty"`
	AdaptiveRecall    *bool          `json:"adaptive_recall,omitempty"`
	Filter            *filterRequest `json:"filter,omitempty"`
}

type referenceResponse struct {
	DocID          string            `json:"doc_id"`
	Title          string            `json:"title"`
	Text           string            `json:"text"`
	RelevanceScore float64           `json:"relevance_score"`
	PageStart      *int              `json:"page_start,omitempty"`
	PageEnd        *int              `json:"page_end,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type searchResponse struct {
	KBID  string              `json:"kb_id"`
	Items []referenceResponse `json:"items"`
	Total int                 `json:"total"`
}

type queryRequest struct {
	Query    string              `json:"query"`
	KBIDs    []string            `json:"kb_ids,omitempty"`
	DocIDs   map[string][]string `json:"doc_ids,omitempty"`
	Language string              `json:"language,omitempty"`
}

type contextResponse struct {
	KBID         string              `json:"kb_id"`
	KBTitle      string              `json:"kb_title,omitempty"`
	MappingScore float64             `json:"mapping_score"`
	References   []referenceResponse `json:"references"`
}

type queryResponse struct {
	QueryID           string            `json:"query_id"`
	Query             string            `json:"query"`
	ReformulatedQuery string            `json:"reformulated_query,omitempty"`
	Outcome           string            `json:"outcome"`
	Mappings          []mappingResponse `json:"mappings"`
	Contexts          []contextResponse `json:"contexts"`
	Context           string            `json:"context"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func kbToResponse(d kb.Descriptor) kbResponse {
	return kbResponse{ID: d.ID(), Title: d.Title(), Description: d.Description(), Language: d.Language()}
}

func mappingsToResponse(mappings []dommap.Result) []mappingResponse {
	out := make([]mappingResponse, len(mappings))
	for i, m := range mappings {
		factors := make(map[string]float64, len(dommap.RequiredFactors))
		for f, v := range m.Factors() {
			factors[string(f)] = v
		}
		out[i] = mappingResponse{
			KBID:              m.KBID(),
			RelevanceScore:    m.RelevanceScore(),
			Reasoning:         m.Reasoning(),
			ConfidenceFactors: factors,
		}
	}
	return out
}

func referencesToResponse(refs []result.Reference) []referenceResponse {
	out := make([]referenceResponse, len(refs))
	for i, r := range refs {
		item := referenceResponse{
			DocID:          r.DocID(),
			Title:          r.Title(),
			Text:           r.Text(),
			RelevanceScore: r.RelevanceScore(),
			Metadata:       r.Metadata(),
		}
		if p := r.Pages(); !p.IsZero() {
			start, end := p.Start, p.End
			item.PageStart, item.PageEnd = &start, &end
		}
		out[i] = item
	}
	return out
}

func queryToResponse(resp *retrieveuc.Response) queryResponse {
	contexts := make([]contextResponse, len(resp.Contexts))
	for i, c := range resp.Contexts {
		contexts[i] = contextResponse{
			KBID:         c.KBID(),
			KBTitle:      c.KBTitle(),
			MappingScore: c.MappingScore(),
			References:   referencesToResponse(c.References()),
		}
	}
	return queryResponse{
		QueryID:           resp.QueryID,
		Query:             resp.Query,
		ReformulatedQuery: resp.ReformulatedQuery,
		Outcome:           string(resp.Outcome),
		Mappings:          mappingsToResponse(resp.Mappings),
		Contexts:          contexts,
		Context:           resp.Context,
	}
}
