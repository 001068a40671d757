package models

// Edge direction relative to the source paper.
const (
	RelationCitation  = "citation"  // target cites source
	RelationReference = "reference" // source cites target
)

// PaperRelation is one directed citation edge. The triple
// (source, target, type) is unique; hop_count records the minimum graph
// distance from the seed observed across all insertions.
type PaperRelation struct {
	SourcePaperID string   `json:"source_paper_id"`
	TargetPaperID string   `json:"target_paper_id"`
	RelationType  string   `json:"relation_type"`
	HopCount      int      `json:"hop_count"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Relevance     *float64 `json:"relevance,omitempty"`
}

// Neighbors groups a paper's edges as loaded for markdown generation.
// Citations are in-edges (papers citing this one), references out-edges.
type Neighbors struct {
	Citations  []PaperRelation `json:"citations"`
	References []PaperRelation `json:"references"`
}
