package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

// jsonBlock matches the outermost object when the model wraps its JSON in prose.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// Scorer estimates query-to-KB relevance with a chat completion returning a JSON object.
type Scorer struct {
	client      *openai.Client
	model       string
	temperature float32
	user        string
	logger      *zap.Logger
}

// NewScorer creates an OpenAI-compatible relevance scorer.
func NewScorer(cfg *Config) *Scorer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		user:        cfg.User,
		logger:      logger,
	}
}

// Score asks the model for one estimate per knowledge base of the catalog.
func (s *Scorer) Score(ctx context.Context, query string, catalog []kb.Descriptor) ([]dommap.Estimate, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildMappingPrompt(query, catalog)},
		},
		Temperature:    s.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		User:           s.user,
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ScorerRequestsTotal.WithLabelValues(s.model, "error").Inc()
		s.logger.Warn("relevance scoring failed", zap.String("model", s.model), zap.Error(err))
		return nil, parseAPIError("scorer", err, domain.ErrScorerUnavailable)
	}
	metrics.ScorerRequestDuration.WithLabelValues(s.model).Observe(duration.Seconds())

	if len(resp.Choices) == 0 {
		metrics.ScorerRequestsTotal.WithLabelValues(s.model, "empty").Inc()
		return nil, domain.Validationf("scorer returned no choices")
	}

	estimates, err := parseEstimates(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.ScorerRequestsTotal.WithLabelValues(s.model, "malformed").Inc()
		return nil, err
	}

	metrics.ScorerRequestsTotal.WithLabelValues(s.model, "success").Inc()
	s.logger.Debug("relevance scored",
		zap.Int("catalog_size", len(catalog)),
		zap.Int("estimates", len(estimates)),
		zap.Duration("duration", duration),
	)
	return estimates, nil
}

// HealthCheck verifies API availability via ListModels.
func (s *Scorer) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

const systemPrompt = "You are an expert in document analysis. You assess how well each knowledge base " +
	"can answer a user question and you always answer with a single JSON object."

func buildMappingPrompt(query string, catalog []kb.Descriptor) string {
	var b strings.Builder
	b.WriteString("Evaluate the relevance of the question for every knowledge base below.\n\n")
	b.WriteString("For each base, assess:\n")
	b.WriteString("1. topic_match: thematic match between the question and the base description\n")
	b.WriteString("2. specificity_match: whether the base covers the level of detail the question needs\n")
	b.WriteString("3. coverage: how much of the question the base can answer\n")
	b.WriteString("4. context_relevance: fit with the implicit context of the question\n\n")
	fmt.Fprintf(&b, "User question: %q\n\nAvailable knowledge bases:\n", query)
	for _, d := range catalog {
		fmt.Fprintf(&b, "- Base '%s' - %s: %s\n", d.ID(), d.Title(), d.Description())
	}
	b.WriteString(`
Answer with this JSON structure:
{
  "mappings": [
    {
      "kb_id": "base identifier",
      "relevance_score": 0.85,
      "reasoning": "why the base is or is not relevant",
      "confidence_factors": {
        "topic_match": 0.9,
        "specificity_match": 0.8,
        "coverage": 0.85,
        "context_relevance": 0.8
      }
    }
  ]
}

All scores are between 0 and 1. Include every base, even when it is not relevant.
`)
	return b.String()
}

type scorerResponse struct {
	Mappings *[]scorerMapping `json:"mappings"`
}

type scorerMapping struct {
	KBID              *string            `json:"kb_id"`
	RelevanceScore    *float64           `json:"relevance_score"`
	Reasoning         string             `json:"reasoning"`
	ConfidenceFactors map[string]float64 `json:"confidence_factors"`
}

// parseEstimates decodes the model output. Missing required keys are validation errors;
// factor completeness is checked by the mapper.
func parseEstimates(content string) ([]dommap.Estimate, error) {
	var parsed scorerResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		block := jsonBlock.FindString(content)
		if block == "" {
			return nil, domain.Validationf("scorer output is not JSON")
		}
		if err := json.Unmarshal([]byte(block), &parsed); err != nil {
			return nil, domain.Validationf("decode scorer output: %v", err)
		}
	}
	if parsed.Mappings == nil {
		return nil, domain.Validationf("scorer output has no %q key", "mappings")
	}

	out := make([]dommap.Estimate, 0, len(*parsed.Mappings))
	for i, m := range *parsed.Mappings {
		if m.KBID == nil || *m.KBID == "" {
			return nil, domain.Validationf("mapping %d: missing kb_id", i)
		}
		if m.RelevanceScore == nil {
			return nil, domain.Validationf("mapping %q: missing relevance_score", *m.KBID)
		}
		if m.ConfidenceFactors == nil {
			return nil, domain.Validationf("mapping %q: missing confidence_factors", *m.KBID)
		}
		factors := make(map[dommap.Factor]float64, len(m.ConfidenceFactors))
		for k, v := range m.ConfidenceFactors {
			factors[dommap.Factor(k)] = v
		}
		out = append(out, dommap.Estimate{
			KBID:           *m.KBID,
			RelevanceScore: *m.RelevanceScore,
			Reasoning:      m.Reasoning,
			Factors:        factors,
		})
	}
	return out, nil
}
