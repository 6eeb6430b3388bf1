package kb

import "testing"

func TestNew_Valid(t *testing.T) {
	d, err := New("normes", "Normes", "Standards and regulations", " FR ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID() != "normes" {
		t.Errorf("ID = %q", d.ID())
	}
	if d.Language() != "fr" {
		t.Errorf("Language = %q, want fr", d.Language())
	}
}

func TestNew_TitleDefaultsToID(t *testing.T) {
	d, err := New("kb1", "", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Title() != "kb1" {
		t.Errorf("Title = %q, want kb1", d.Title())
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"spaces", "my kb"},
		{"slash", "a/b"},
		{"too long", string(make([]byte, 65))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.id, "t", "d", "en"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestIndex(t *testing.T) {
	catalog := []Descriptor{
		Reconstruct("a", "A", "", "en"),
		Reconstruct("b", "B", "", "fr"),
	}
	idx := Index(catalog)
	if len(idx) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(idx))
	}
	if idx["b"].Language() != "fr" {
		t.Errorf("b language = %q", idx["b"].Language())
	}
}
