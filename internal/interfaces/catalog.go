package interfaces

import "context"

// CatalogPaper is the normalized record returned by all catalog
// operations, independent of the catalog's wire format.
type CatalogPaper struct {
	PaperID        string
	Title          string
	Abstract       string
	Year           *int
	CitationCount  int
	ReferenceCount int
	InfluenceScore *float64
	IsOpenAccess   bool
	Language       string
	PDFURL         string
	VenueName      string
	VenueType      string
	JournalName    string
	Authors        []CatalogAuthor
	ExternalIDs    map[string]string
	FieldsOfStudy  []string
}

// CatalogAuthor is a normalized catalog author record.
type CatalogAuthor struct {
	AuthorID      string
	Name          string
	PaperCount    int
	CitationCount int
	HIndex        int
	ORCID         string
}

// CatalogClient fetches paper metadata and citation edges from the
// bibliographic catalog. Implementations own rate limiting and retries;
// failures carry the catalog error taxonomy.
type CatalogClient interface {
	// GetPaper fetches one paper by id. Returns a catalog not-found error
	// when the catalog has no such paper.
	GetPaper(ctx context.Context, paperID string) (*CatalogPaper, error)

	// GetCitations lists papers citing paperID. Returns an empty slice on 404.
	GetCitations(ctx context.Context, paperID string, limit, offset int) ([]*CatalogPaper, error)

	// GetReferences lists papers cited by paperID. Returns an empty slice on 404.
	GetReferences(ctx context.Context, paperID string, limit, offset int) ([]*CatalogPaper, error)

	// Search runs a free-text query and returns matches in catalog ranking order.
	Search(ctx context.Context, query string, limit int) ([]*CatalogPaper, error)
}
