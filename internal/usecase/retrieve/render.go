package retrieve

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/kbroute/internal/domain/search/result"
)

// BuildContext renders contexts as prompt text: a header per knowledge base followed by
// its documents. A knowledge base without a title is named by its id.
func BuildContext(contexts []result.Context) string {
	var b strings.Builder
	for _, c := range contexts {
		title := c.KBTitle()
		if title == "" {
			title = c.KBID()
		}
		fmt.Fprintf(&b, "\nContext from '%s':\n", title)
		for _, r := range c.References() {
			fmt.Fprintf(&b, "Document '%s':\n%s\n\n", r.Title(), r.Text())
		}
	}
	return b.String()
}
