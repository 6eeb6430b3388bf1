package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/search/filter"
	"github.com/kailas-cloud/kbroute/internal/domain/search/mode"
	"github.com/kailas-cloud/kbroute/internal/domain/search/profile"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
)

// --- Mocks ---

// mockHandle answers queries from a per-mode script. Modes missing from the script return no hits.
type mockHandle struct {
	id         string
	hits       map[mode.Mode][]result.Hit
	err        error
	docErr     error
	titles     map[string]string
	profiles   []profile.Profile
	lastFilter filter.Metadata
	docCalls   int
	onQuery    func()
}

func (m *mockHandle) ID() string { return m.id }

func (m *mockHandle) Query(_ context.Context, _ string, f filter.Metadata, p profile.Profile) ([]result.Hit, error) {
	m.profiles = append(m.profiles, p)
	m.lastFilter = f
	if m.onQuery != nil {
		m.onQuery()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.hits[p.Mode], nil
}

func (m *mockHandle) Document(_ context.Context, docID string, _ int) (string, map[string]string, error) {
	m.docCalls++
	if m.docErr != nil {
		return "", nil, m.docErr
	}
	return m.titles[docID], map[string]string{"source": docID}, nil
}

func hit(doc string, score float64) result.Hit {
	return result.Hit{DocID: doc, Text: doc + " text", Score: score}
}

func refKeys(refs []result.Reference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.DocID() + ":" + r.Text()
	}
	return out
}

func cfgPtr(t *testing.T, m mode.Mode, minRel float64, maxSeg int, adaptive bool) *request.Config {
	t.Helper()
	c := mustConfig(t, m, minRel, maxSeg, adaptive)
	return &c
}

// --- Tests ---

func TestSearch_NoEscalationWhenResultsFound(t *testing.T) {
	h := &mockHandle{id: "kb1", hits: map[mode.Mode][]result.Hit{
		mode.Balanced: {hit("d1", 0.9)},
	}}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Balanced, 0.5, 3, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if len(h.profiles) != 1 {
		t.Errorf("expected 1 retrieval call, got %d", len(h.profiles))
	}
}

func TestSearch_AdaptiveOffSingleCall(t *testing.T) {
	h := &mockHandle{id: "kb1"}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Precise, 0.5, 3, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no references, got %d", len(refs))
	}
	if len(h.profiles) != 1 {
		t.Fatalf("adaptive_recall=false must issue exactly 1 call, got %d", len(h.profiles))
	}
}

func TestSearch_ScenarioC_EscalatesFromPrecise(t *testing.T) {
	h := &mockHandle{id: "kb1"}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Precise, 0.5, 3, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected empty result after exhausting all profiles, got %d", len(refs))
	}

	wantModes := []mode.Mode{mode.Precise, mode.Balanced, mode.Thorough, mode.Exhaustive}
	if diff := cmp.Diff(wantModes, modesOf(h.profiles)); diff != "" {
		t.Fatalf("escalation order mismatch (-want +got):\n%s", diff)
	}

	balanced := h.profiles[1]
	if math.Abs(balanced.MinimumValue-0.3) > 1e-9 {
		t.Errorf("balanced minimum_value = %v, want 0.3", balanced.MinimumValue)
	}
	if balanced.OverallMaxLength != 45 {
		t.Errorf("balanced overall_max_length = %d, want 45", balanced.OverallMaxLength)
	}
	if math.Abs(balanced.IrrelevantChunkPenalty-0.144) > 1e-9 {
		t.Errorf("balanced penalty = %v, want 0.144", balanced.IrrelevantChunkPenalty)
	}
	if h.profiles[3].MinimumValue != 0.1 {
		t.Errorf("exhaustive minimum_value must be floored at 0.1, got %v", h.profiles[3].MinimumValue)
	}
}

func TestSearch_StopsAtFirstNonEmpty(t *testing.T) {
	h := &mockHandle{id: "kb1", hits: map[mode.Mode][]result.Hit{
		mode.Thorough:   {hit("d1", 0.8)},
		mode.Exhaustive: {hit("d2", 0.9)},
	}}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Precise, 0.5, 3, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.profiles) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(h.profiles))
	}
	if len(refs) != 1 || refs[0].DocID() != "d1" {
		t.Fatalf("unexpected references: %v", refKeys(refs))
	}
}

func TestSearch_ExhaustiveStartNeverEscalates(t *testing.T) {
	h := &mockHandle{id: "kb1"}
	svc := New(nil)

	_, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Exhaustive, 0.5, 3, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.profiles) != 1 {
		t.Fatalf("expected 1 call, got %d", len(h.profiles))
	}
	if h.profiles[0].Loosened {
		t.Error("start profile must not be loosened")
	}
}

func TestSearch_CapBeforeSort(t *testing.T) {
	// Retrieval order for d1: 0.6, 0.7, 0.95. With a cap of 2 the first two
	// encountered survive even though the third scores highest.
	h := &mockHandle{id: "kb1", hits: map[mode.Mode][]result.Hit{
		mode.Balanced: {
			{DocID: "d1", Text: "a", Score: 0.6},
			{DocID: "d2", Text: "b", Score: 0.8},
			{DocID: "d1", Text: "c", Score: 0.7},
			{DocID: "d1", Text: "d", Score: 0.95},
		},
	}}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Balanced, 0.5, 2, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"d2:b", "d1:c", "d1:a"}
	if diff := cmp.Diff(want, refKeys(refs)); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch_MinRelevanceDropsBeforeCap(t *testing.T) {
	h := &mockHandle{id: "kb1", hits: map[mode.Mode][]result.Hit{
		mode.Balanced: {
			{DocID: "d1", Text: "low", Score: 0.2},
			{DocID: "d1", Text: "x", Score: 0.7},
			{DocID: "d1", Text: "y", Score: 0.65},
		},
	}}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Balanced, 0.6, 2, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"d1:x", "d1:y"}, refKeys(refs)); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch_UnlimitedSegmentsPerDoc(t *testing.T) {
	h := &mockHandle{id: "kb1", hits: map[mode.Mode][]result.Hit{
		mode.Balanced: {hit("d1", 0.9), hit("d1", 0.8), hit("d1", 0.7), hit("d1", 0.6)},
	}}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Balanced, 0, 0, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 4 {
		t.Fatalf("max_segments_per_doc=0 keeps everything, got %d", len(refs))
	}
}

func TestSearch_ResolvesTitlesOncePerDocument(t *testing.T) {
	h := &mockHandle{
		id:     "kb1",
		titles: map[string]string{"d1": "Manual", "d2": "Guide"},
		hits: map[mode.Mode][]result.Hit{
			mode.Balanced: {hit("d1", 0.9), hit("d2", 0.8), hit("d1", 0.7)},
		},
	}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Balanced, 0.5, 3, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.docCalls != 2 {
		t.Errorf("expected 2 document lookups, got %d", h.docCalls)
	}
	if refs[0].Title() != "Manual" || refs[1].Title() != "Guide" {
		t.Errorf("unexpected titles: %q, %q", refs[0].Title(), refs[1].Title())
	}
	if refs[1].Metadata()["source"] != "d2" {
		t.Errorf("metadata not propagated: %v", refs[1].Metadata())
	}
}

func TestSearch_DefaultConfig(t *testing.T) {
	h := &mockHandle{id: "kb1", hits: map[mode.Mode][]result.Hit{
		mode.Balanced: {hit("d1", 0.55), hit("d2", 0.65)},
	}}
	svc := New(nil)

	refs, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.profiles[0].Mode != mode.Balanced {
		t.Errorf("default mode = %s, want balanced", h.profiles[0].Mode)
	}
	if len(refs) != 1 || refs[0].DocID() != "d2" {
		t.Errorf("default min_relevance 0.6 should keep only d2, got %v", refKeys(refs))
	}
}

func TestSearch_PassesFilter(t *testing.T) {
	f, err := filter.New("category", filter.Equals, "audit")
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	h := &mockHandle{id: "kb1"}
	svc := New(nil)

	if _, err := svc.Search(context.Background(), "q", h, f, cfgPtr(t, mode.Balanced, 0.5, 3, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.lastFilter.Field() != "category" || h.lastFilter.Values()[0] != "audit" {
		t.Errorf("filter not forwarded: %+v", h.lastFilter)
	}
}

func TestSearch_RetrievalErrorNotRetried(t *testing.T) {
	backendErr := errors.New("timeout")
	h := &mockHandle{id: "kb1", err: backendErr}
	svc := New(nil)

	_, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Precise, 0.5, 3, true))
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
	if !errors.Is(err, backendErr) {
		t.Errorf("expected the backend error to be wrapped, got %v", err)
	}
	if len(h.profiles) != 1 {
		t.Errorf("errors must not escalate, got %d calls", len(h.profiles))
	}
}

func TestSearch_DocumentLookupError(t *testing.T) {
	h := &mockHandle{
		id:     "kb1",
		docErr: errors.New("conn reset"),
		hits:   map[mode.Mode][]result.Hit{mode.Balanced: {hit("d1", 0.9)}},
	}
	svc := New(nil)

	_, err := svc.Search(context.Background(), "q", h, filter.Metadata{}, cfgPtr(t, mode.Balanced, 0.5, 3, true))
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

func TestSearch_CancelStopsEscalation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := &mockHandle{id: "kb1", onQuery: cancel}
	svc := New(nil)

	_, err := svc.Search(ctx, "q", h, filter.Metadata{}, cfgPtr(t, mode.Precise, 0.5, 3, true))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(h.profiles) != 1 {
		t.Errorf("expected no attempts after cancellation, got %d calls", len(h.profiles))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := &mockHandle{id: "kb1"}
	svc := New(nil)

	_, err := svc.Search(context.Background(), "", h, filter.Metadata{}, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(h.profiles) != 0 {
		t.Error("no retrieval call expected")
	}
}
