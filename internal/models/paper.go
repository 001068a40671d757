// -----------------------------------------------------------------------
// Paper - Citation graph node with per-stage processing lifecycle
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// Stage status values. Every stage column on a paper moves through the
// same lifecycle; pdf_status additionally allows "unavailable".
const (
	StatusPending     = "pending"
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusUnavailable = "unavailable" // pdf_status only
)

// Year bounds enforced by the store. Papers outside the range are rejected.
const (
	MinYear = 1900
	MaxYear = 2100
)

// Paper represents one node of the citation graph, keyed by the catalog's
// opaque paper id. A row is created either by ingress (the seed) or as a
// placeholder when the paper is first discovered as a neighbor; the crawl
// stage later fills in the metadata.
type Paper struct {
	PaperID        string   `json:"paper_id"`
	Title          string   `json:"title"`
	Abstract       string   `json:"abstract,omitempty"`
	Year           *int     `json:"year,omitempty"`
	CitationCount  int      `json:"citation_count"`
	ReferenceCount int      `json:"reference_count"`
	InfluenceScore *float64 `json:"influence_score,omitempty"`
	IsOpenAccess   bool     `json:"is_open_access"`
	Language       string   `json:"language,omitempty"`

	VenueID   *int64 `json:"venue_id,omitempty"`
	JournalID *int64 `json:"journal_id,omitempty"`

	// PDF pipeline state
	PDFURL  string `json:"pdf_url,omitempty"`
	PDFHash string `json:"pdf_hash,omitempty"` // SHA-256 of the fetched bytes
	PDFSize int64  `json:"pdf_size,omitempty"`

	// AI summary state
	Summary          string     `json:"summary,omitempty"`
	SummaryModel     string     `json:"summary_model,omitempty"`
	SummaryCreatedAt *time.Time `json:"summary_created_at,omitempty"`

	// Stage lifecycle
	CrawlStatus   string `json:"crawl_status"`
	PDFStatus     string `json:"pdf_status"`
	SummaryStatus string `json:"summary_status"`

	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsPlaceholder reports whether the row holds only an id discovered through
// an edge, awaiting its own crawl.
func (p *Paper) IsPlaceholder() bool {
	return p.Title == "" && p.CrawlStatus == StatusPending
}

// NewPlaceholderPaper creates the minimal row written when a paper is first
// seen as a citation/reference neighbor.
func NewPlaceholderPaper(paperID string) *Paper {
	now := time.Now().UTC()
	return &Paper{
		PaperID:       paperID,
		CrawlStatus:   StatusPending,
		PDFStatus:     StatusPending,
		SummaryStatus: StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Author is a catalog author; cumulative counts come from the catalog, not
// from the local graph.
type Author struct {
	AuthorID      string    `json:"author_id"`
	Name          string    `json:"name"`
	PaperCount    int       `json:"paper_count"`
	CitationCount int       `json:"citation_count"`
	HIndex        int       `json:"h_index"`
	ORCID         string    `json:"orcid,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PaperAuthor links a paper to an author preserving byline order.
type PaperAuthor struct {
	PaperID  string `json:"paper_id"`
	AuthorID string `json:"author_id"`
	Position int    `json:"position"`
}

// External identifier types recognized by the catalog.
const (
	IDTypeDOI    = "DOI"
	IDTypeArXiv  = "ArXiv"
	IDTypePubMed = "PubMed"
	IDTypePMCID  = "PMCID"
)

// ExternalID maps a paper to one of its identifiers in another registry.
type ExternalID struct {
	PaperID    string `json:"paper_id"`
	IDType     string `json:"id_type"`
	ExternalID string `json:"external_id"`
}

// Keyword is an extracted keyword with its relevance and provenance.
type Keyword struct {
	PaperID   string  `json:"paper_id"`
	Keyword   string  `json:"keyword"`
	Relevance float64 `json:"relevance"`
	Method    string  `json:"method"` // e.g. "llm", "fields_of_study"
}

// Venue is a publication venue (conference, workshop) referenced from papers.
type Venue struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Journal is a journal referenced from papers.
type Journal struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
