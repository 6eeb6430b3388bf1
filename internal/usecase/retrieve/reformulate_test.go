package retrieve

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReformulations(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "modifiers and codes",
			query: "quelle est exactement la procédure ISO-9001 de 2019 pour les audits",
			want: []string{
				"quelle est la procédure",
				"quelle est exactement la procédure de pour les audits",
			},
		},
		{
			name:  "short query without specifics",
			query: "audit trail",
			want:  []string{},
		},
		{
			name:  "only codes",
			query: "ISO 9001",
			want:  []string{},
		},
		{
			name:  "english modifier",
			query: "what specifically does the audit cover",
			want:  []string{"what does the audit"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reformulations(tt.query)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
