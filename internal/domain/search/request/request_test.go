package request

import (
	"math"
	"strings"
	"testing"

	"github.com/kailas-cloud/kbroute/internal/domain/search/mode"
)

func TestNewConfig_Defaults(t *testing.T) {
	c, err := NewConfig("", 0.5, 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Mode() != mode.Balanced {
		t.Errorf("Mode = %q, want balanced", c.Mode())
	}
	if c.MinRelevance() != 0.5 || c.MaxSegmentsPerDoc() != 2 || c.AdaptiveRecall() {
		t.Errorf("unexpected config: %+v", c)
	}
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		m      mode.Mode
		minRel float64
		maxSeg int
	}{
		{"bad mode", "hybrid", 0.5, 1},
		{"negative relevance", mode.Precise, -0.1, 1},
		{"relevance above one", mode.Precise, 1.1, 1},
		{"negative cap", mode.Precise, 0.5, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewConfig(tc.m, tc.minRel, tc.maxSeg, true); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Mode() != mode.Balanced || c.MinRelevance() != 0.6 || c.MaxSegmentsPerDoc() != 3 || !c.AdaptiveRecall() {
		t.Errorf("unexpected default config: %+v", c)
	}
}

func TestScaledBy(t *testing.T) {
	base, err := NewConfig(mode.Precise, 0.6, 4, false)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}

	scaled := base.ScaledBy(0.5)

	if math.Abs(scaled.MinRelevance()-0.3) > 1e-9 {
		t.Errorf("MinRelevance = %v, want 0.3", scaled.MinRelevance())
	}
	if scaled.Mode() != mode.Precise || scaled.MaxSegmentsPerDoc() != 4 || scaled.AdaptiveRecall() {
		t.Error("other fields must be copied unchanged")
	}
	if base.MinRelevance() != 0.6 {
		t.Error("ScaledBy must not modify the receiver")
	}
}

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(""); err == nil {
		t.Error("expected error for empty query")
	}
	if err := ValidateQuery(strings.Repeat("a", MaxQueryLength+1)); err == nil {
		t.Error("expected error for long query")
	}
	if err := ValidateQuery("what is ISO 9001"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
