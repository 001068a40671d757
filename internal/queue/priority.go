// -----------------------------------------------------------------------
// Crawl Priority - Depth- and citation-weighted scoring for the frontier
// -----------------------------------------------------------------------

package queue

import (
	"math"

	"github.com/ternarybob/refnet/internal/models"
)

// CrawlPriority scores a crawl candidate at the given hop distance. Depth
// dominates: a paper at the boundary scores 0 regardless of citations; a
// heavily cited paper near the seed approaches 100. Citations saturate at
// 100, keeping mega-cited classics from drowning out the local
// neighborhood.
func CrawlPriority(hop, maxHops, citations int) int {
	if hop < 0 {
		hop = 0
	}
	if citations < 0 {
		citations = 0
	}
	if maxHops <= 0 {
		if hop > 0 {
			return 0
		}
		return models.PriorityMax
	}

	depth := 1 - float64(hop)/float64(maxHops)
	if depth < 0 {
		depth = 0
	}

	cited := float64(citations) / 100
	if cited > 1 {
		cited = 1
	}

	return int(math.Round(100 * depth * (0.5 + 0.5*cited)))
}

// ShouldCrawl reports whether a neighbor discovered at hop clears both the
// depth bound and the priority floor.
func ShouldCrawl(hop, maxHops, citations int) bool {
	if hop > maxHops {
		return false
	}
	return CrawlPriority(hop, maxHops, citations) >= models.PriorityFloor
}
