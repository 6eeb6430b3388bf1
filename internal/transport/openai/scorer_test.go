package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
)

func chatServer(t *testing.T, content string, onRequest func(body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if onRequest != nil {
			var body map[string]any
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Errorf("decode request: %v", err)
			}
			onRequest(body)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func newTestScorer(url string) *Scorer {
	return NewScorer(&Config{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})
}

func testCatalog() []kb.Descriptor {
	return []kb.Descriptor{
		kb.Reconstruct("hr", "HR policies", "Leave and benefits", "en"),
		kb.Reconstruct("it", "IT handbook", "VPN and laptops", "en"),
	}
}

const validScorerOutput = `{"mappings":[
 {"kb_id":"hr","relevance_score":0.9,"reasoning":"leave question",
  "confidence_factors":{"topic_match":0.9,"specificity_match":0.8,"coverage":0.85,"context_relevance":0.7}},
 {"kb_id":"it","relevance_score":0.2,"reasoning":"unrelated",
  "confidence_factors":{"topic_match":0.1,"specificity_match":0.2,"coverage":0.1,"context_relevance":0.3}}
]}`

func TestScorer_Score(t *testing.T) {
	var prompt string
	var format any
	server := chatServer(t, validScorerOutput, func(body map[string]any) {
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("expected 2 messages, got %d", len(msgs))
			return
		}
		prompt, _ = msgs[1].(map[string]any)["content"].(string)
		format = body["response_format"]
	})
	defer server.Close()

	got, err := newTestScorer(server.URL).Score(context.Background(), "How many vacation days?", testCatalog())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 estimates, got %d", len(got))
	}
	if got[0].KBID != "hr" || got[0].RelevanceScore != 0.9 {
		t.Errorf("first estimate = %+v", got[0])
	}
	if got[0].Factors[dommap.Coverage] != 0.85 {
		t.Errorf("coverage = %v, expected 0.85", got[0].Factors[dommap.Coverage])
	}
	if !strings.Contains(prompt, "- Base 'hr' - HR policies: Leave and benefits") {
		t.Errorf("prompt missing catalog line:\n%s", prompt)
	}
	if !strings.Contains(prompt, "How many vacation days?") {
		t.Error("prompt missing query")
	}
	f, _ := format.(map[string]any)
	if f["type"] != "json_object" {
		t.Errorf("response_format = %v, expected json_object", format)
	}
}

func TestScorer_ExtractsJSONFromProse(t *testing.T) {
	server := chatServer(t, "Here is my analysis:\n"+validScorerOutput+"\nHope this helps.", nil)
	defer server.Close()

	got, err := newTestScorer(server.URL).Score(context.Background(), "q", testCatalog())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 estimates, got %d", len(got))
	}
}

func TestParseEstimates_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "no idea"},
		{"missing mappings", `{"analysis":{}}`},
		{"missing kb_id", `{"mappings":[{"relevance_score":0.5,"confidence_factors":{}}]}`},
		{"missing score", `{"mappings":[{"kb_id":"a","confidence_factors":{}}]}`},
		{"missing factors", `{"mappings":[{"kb_id":"a","relevance_score":0.5}]}`},
		{"broken block", "text {\"mappings\": [} text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseEstimates(tt.content)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestParseEstimates_EmptyMappings(t *testing.T) {
	got, err := parseEstimates(`{"mappings":[]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no estimates, got %d", len(got))
	}
}

func TestScorer_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"model overloaded"}`))
	}))
	defer server.Close()

	_, err := newTestScorer(server.URL).Score(context.Background(), "q", testCatalog())
	if !errors.Is(err, domain.ErrScorerUnavailable) {
		t.Fatalf("expected ErrScorerUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("expected detail in error, got %v", err)
	}
}

func TestScorer_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	if err := newTestScorer(server.URL).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
