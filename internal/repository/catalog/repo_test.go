package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/kbroute/internal/domain"
)

func TestList_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	var pattern string
	ms.scanFn = func(_ context.Context, p string) ([]string, error) {
		pattern = p
		return []string{"kbroute:kb:legal", "kbroute:kb:hr", "kbroute:kb:chunk:d1:0"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		if len(keys) != 2 {
			t.Errorf("expected chunk key to be filtered out, got %v", keys)
		}
		return []map[string]string{
			{"title": "Legal", "description": "Contracts", "language": "FR"},
			{"title": "HR", "description": "Leave", "language": "en"},
		}, nil
	}

	kbs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pattern != "kbroute:kb:*" {
		t.Errorf("scan pattern = %q", pattern)
	}
	if len(kbs) != 2 {
		t.Fatalf("expected 2 knowledge bases, got %d", len(kbs))
	}
	if kbs[0].ID() != "hr" || kbs[1].ID() != "legal" {
		t.Fatalf("expected sorted by id, got %s, %s", kbs[0].ID(), kbs[1].ID())
	}
	if kbs[1].Language() != "fr" || kbs[1].Description() != "Contracts" {
		t.Errorf("unexpected descriptor: %+v", kbs[1])
	}
}

func TestList_SkipsEmptyAndMalformed(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.scanFn = func(_ context.Context, _ string) ([]string, error) {
		return []string{"kbroute:kb:gone", "kbroute:kb:bad id!", "kbroute:kb:ok"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		return []map[string]string{
			{},
			{"title": "Broken"},
			{"title": "Fine"},
		}, nil
	}

	kbs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kbs) != 1 || kbs[0].ID() != "ok" {
		t.Errorf("expected only ok, got %+v", kbs)
	}
}

func TestList_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)

	kbs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kbs) != 0 {
		t.Fatalf("expected empty list, got %d", len(kbs))
	}
}

func TestList_ScanError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scanFn = func(_ context.Context, _ string) ([]string, error) {
		return nil, errors.New("connection refused")
	}

	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestGet_TitleDefaultsToID(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "kbroute:kb:hr" {
			t.Errorf("unexpected key %s", key)
		}
		return map[string]string{"description": "Leave"}, nil
	}

	d, err := repo.Get(context.Background(), "hr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Title() != "hr" {
		t.Errorf("title = %q, expected id fallback", d.Title())
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{"title": "HR"}, nil
	}
	var index string
	ms.indexExistsFn = func(_ context.Context, name string) (bool, error) {
		index = name
		return true, nil
	}

	h, err := repo.Resolve(context.Background(), "hr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID() != "hr" {
		t.Errorf("handle id = %q", h.ID())
	}
	if index != "kbroute:hr:idx" {
		t.Errorf("index = %q", index)
	}
}

func TestList_HashIDMustMatchKey(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.scanFn = func(_ context.Context, _ string) ([]string, error) {
		return []string{"kbroute:kb:hr", "kbroute:kb:legal"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		return []map[string]string{
			{"id": "hr", "title": "HR"},
			{"id": "finance", "title": "Legal"},
		}, nil
	}

	kbs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kbs) != 1 || kbs[0].ID() != "hr" {
		t.Errorf("expected only hr, got %+v", kbs)
	}
}

func TestResolve_HashIDMismatch(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{"id": "finance", "title": "HR"}, nil
	}
	ms.indexExistsFn = func(_ context.Context, name string) (bool, error) {
		t.Errorf("index %s checked for a mismatched descriptor", name)
		return true, nil
	}

	h, err := repo.Resolve(context.Background(), "hr")
	if err == nil {
		t.Fatal("expected error")
	}
	if h != nil {
		t.Error("expected nil handle")
	}
}

func TestResolve_HandleMatchesIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{"id": "hr", "title": "HR"}, nil
	}
	var index string
	ms.indexExistsFn = func(_ context.Context, name string) (bool, error) {
		index = name
		return true, nil
	}

	h, err := repo.Handle(context.Background(), "hr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID() != "hr" || index != "kbroute:hr:idx" {
		t.Errorf("handle %q resolved against index %q", h.ID(), index)
	}
}

func TestResolve_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		hash    map[string]string
		indexOK bool
	}{
		{"missing descriptor", map[string]string{}, true},
		{"missing index", map[string]string{"title": "HR"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, ms := newTestRepo(t)
			ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
				return tt.hash, nil
			}
			ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) {
				return tt.indexOK, nil
			}

			h, err := repo.Resolve(context.Background(), "hr")
			if !errors.Is(err, domain.ErrKBUnavailable) {
				t.Fatalf("expected ErrKBUnavailable, got %v", err)
			}
			if h != nil {
				t.Error("expected nil handle")
			}
		})
	}
}

func TestResolve_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return nil, errors.New("connection refused")
	}

	_, err := repo.Resolve(context.Background(), "hr")
	if err == nil || errors.Is(err, domain.ErrKBUnavailable) {
		t.Fatalf("expected a plain store error, got %v", err)
	}
}
