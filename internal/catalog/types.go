package catalog

// Wire types for the bibliographic catalog's JSON API. Unknown fields are
// ignored by design; only the fields the pipeline consumes are declared.

type paperResult struct {
	PaperID        string         `json:"paperId"`
	Title          string         `json:"title"`
	Abstract       string         `json:"abstract"`
	Year           *int           `json:"year"`
	CitationCount  int            `json:"citationCount"`
	ReferenceCount int            `json:"referenceCount"`
	InfluenceScore *float64       `json:"influentialCitationCount,omitempty"`
	IsOpenAccess   bool           `json:"isOpenAccess"`
	Language       string         `json:"language"`
	Authors        []authorInfo   `json:"authors"`
	Venue          *venueInfo     `json:"publicationVenue"`
	Journal        *journalInfo   `json:"journal"`
	ExternalIDs    map[string]any `json:"externalIds"`
	FieldsOfStudy  []string       `json:"fieldsOfStudy"`
	OpenAccessPDF  *openAccessPDF `json:"openAccessPdf"`
}

type authorInfo struct {
	AuthorID      string `json:"authorId"`
	Name          string `json:"name"`
	PaperCount    int    `json:"paperCount"`
	CitationCount int    `json:"citationCount"`
	HIndex        int    `json:"hIndex"`
	ORCID         string `json:"orcid"`
}

type venueInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type journalInfo struct {
	Name string `json:"name"`
}

type openAccessPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

type listResponse struct {
	Offset int         `json:"offset"`
	Next   int         `json:"next"`
	Data   []listEntry `json:"data"`
}

// listEntry wraps a neighbor paper; the citations endpoint nests it under
// "citingPaper", the references endpoint under "citedPaper".
type listEntry struct {
	CitingPaper *paperResult `json:"citingPaper"`
	CitedPaper  *paperResult `json:"citedPaper"`
}

type searchResponse struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Data   []paperResult `json:"data"`
}
