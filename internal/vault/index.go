// -----------------------------------------------------------------------
// Vault Index - README.md aggregates regenerated on every generate pass
// -----------------------------------------------------------------------

package vault

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/refnet/internal/interfaces"
)

// WriteIndex renders the vault README.md from the graph aggregates.
func (w *Writer) WriteIndex(stats *interfaces.GraphStats) error {
	var b strings.Builder

	b.WriteString("# RefNet Vault\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", time.Now().UTC().Format(time.RFC3339))

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- **Papers**: %d\n", stats.TotalPapers)
	fmt.Fprintf(&b, "- **Total citations**: %d\n\n", stats.TotalCitations)

	if len(stats.YearHistogram) > 0 {
		b.WriteString("## Papers by Year\n\n")
		years := make([]int, 0, len(stats.YearHistogram))
		for year := range stats.YearHistogram {
			years = append(years, year)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(years)))
		for _, year := range years {
			fmt.Fprintf(&b, "- %d: %d\n", year, stats.YearHistogram[year])
		}
		b.WriteString("\n")
	}

	if len(stats.TopCited) > 0 {
		b.WriteString("## Most Cited\n\n")
		for _, p := range stats.TopCited {
			fmt.Fprintf(&b, "- [[papers/%s|%s]] (%d citations)\n",
				SanitizeFilename(p.PaperID), p.Title, p.CitationCount)
		}
		b.WriteString("\n")
	}

	if len(stats.MostRecent) > 0 {
		b.WriteString("## Recently Added\n\n")
		for _, p := range stats.MostRecent {
			fmt.Fprintf(&b, "- [[papers/%s|%s]]\n", SanitizeFilename(p.PaperID), p.Title)
		}
		b.WriteString("\n")
	}

	return w.writeAtomic("README.md", []byte(b.String()))
}
