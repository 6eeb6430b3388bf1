package retrieve

import (
	"regexp"
	"strings"
)

// simplifyMaxWords is the number of leading words a simplified query keeps.
const simplifyMaxWords = 4

var (
	emphaticModifiers = regexp.MustCompile(`(?i)\b(exactement|précisément|spécifiquement|exactly|precisely|specifically)\b`)
	specificTerms     = regexp.MustCompile(`\b\d+\b|\b[A-Z0-9-]+\b`)
)

// Reformulations returns broader variants of a query that found nothing: the query
// without emphatic modifiers cut to its first words, then the query without numbers
// and upper-case codes. Empty variants and variants equal to the query are omitted.
func Reformulations(query string) []string {
	candidates := []string{simplify(query), removeSpecificTerms(query)}
	out := make([]string, 0, len(candidates))
	seen := map[string]struct{}{normalize(query): {}}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func simplify(query string) string {
	words := strings.Fields(emphaticModifiers.ReplaceAllString(query, ""))
	if len(words) > simplifyMaxWords {
		words = words[:simplifyMaxWords]
	}
	return strings.Join(words, " ")
}

func removeSpecificTerms(query string) string {
	return normalize(specificTerms.ReplaceAllString(query, ""))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
