// -----------------------------------------------------------------------
// Paper Renderer - Markdown document with YAML front matter per paper
// -----------------------------------------------------------------------

package vault

import (
	"fmt"
	"sort"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/refnet/internal/models"
)

// PaperDoc bundles everything rendered into one vault page.
type PaperDoc struct {
	Paper       *models.Paper
	Authors     []*models.Author
	Keywords    []*models.Keyword
	Neighbors   *models.Neighbors
	ExternalIDs []*models.ExternalID
	VenueName   string
	JournalName string
}

type frontMatter struct {
	PaperID        string   `yaml:"paper_id"`
	Title          string   `yaml:"title"`
	Year           *int     `yaml:"year,omitempty"`
	CitationCount  int      `yaml:"citation_count"`
	ReferenceCount int      `yaml:"reference_count"`
	Authors        []string `yaml:"authors,omitempty"`
	Tags           []string `yaml:"tags,omitempty"`
	Keywords       []string `yaml:"keywords,omitempty"`
}

var htmlConverter = md.NewConverter("", true, nil)

// WritePaper renders the document and writes it atomically under papers/.
func (w *Writer) WritePaper(doc *PaperDoc) error {
	content, err := RenderPaper(doc)
	if err != nil {
		return err
	}

	relPath := "papers/" + PaperFilename(doc.Paper.PaperID)
	if err := w.writeAtomic(relPath, []byte(content)); err != nil {
		return err
	}

	w.logger.Debug().
		Str("paper_id", doc.Paper.PaperID).
		Str("file", relPath).
		Msg("Wrote vault page")
	return nil
}

// RenderPaper produces the full markdown document.
func RenderPaper(doc *PaperDoc) (string, error) {
	p := doc.Paper

	fm := frontMatter{
		PaperID:        p.PaperID,
		Title:          p.Title,
		Year:           p.Year,
		CitationCount:  p.CitationCount,
		ReferenceCount: p.ReferenceCount,
	}
	for _, a := range doc.Authors {
		fm.Authors = append(fm.Authors, a.Name)
	}
	if p.Year != nil {
		fm.Tags = append(fm.Tags, fmt.Sprintf("year/%d", *p.Year))
	}
	if doc.VenueName != "" {
		fm.Tags = append(fm.Tags, "venue/"+tagSlug(doc.VenueName))
	}
	for _, kw := range sortedKeywords(doc.Keywords) {
		fm.Keywords = append(fm.Keywords, kw.Keyword)
	}

	fmBytes, err := yaml.Marshal(&fm)
	if err != nil {
		return "", fmt.Errorf("failed to marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fmBytes)
	b.WriteString("---\n\n")

	title := p.Title
	if title == "" {
		title = p.PaperID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	writeBasicInfo(&b, doc)
	writeSummary(&b, p)
	writeAbstract(&b, p)
	writeRelations(&b, "Citations", doc.neighborList(models.RelationCitation))
	writeRelations(&b, "References", doc.neighborList(models.RelationReference))
	writeKeywords(&b, doc.Keywords)
	writeExternalLinks(&b, doc.ExternalIDs)
	writeMetadata(&b, p)

	return b.String(), nil
}

func (d *PaperDoc) neighborList(relationType string) []models.PaperRelation {
	if d.Neighbors == nil {
		return nil
	}
	if relationType == models.RelationCitation {
		return d.Neighbors.Citations
	}
	return d.Neighbors.References
}

func writeBasicInfo(b *strings.Builder, doc *PaperDoc) {
	p := doc.Paper
	b.WriteString("## Basic Info\n\n")
	if p.Year != nil {
		fmt.Fprintf(b, "- **Year**: %d\n", *p.Year)
	}
	if len(doc.Authors) > 0 {
		names := make([]string, 0, len(doc.Authors))
		for _, a := range doc.Authors {
			names = append(names, a.Name)
		}
		fmt.Fprintf(b, "- **Authors**: %s\n", strings.Join(names, ", "))
	}
	if doc.VenueName != "" {
		fmt.Fprintf(b, "- **Venue**: %s\n", doc.VenueName)
	}
	if doc.JournalName != "" {
		fmt.Fprintf(b, "- **Journal**: %s\n", doc.JournalName)
	}
	fmt.Fprintf(b, "- **Citations**: %d\n", p.CitationCount)
	fmt.Fprintf(b, "- **References**: %d\n", p.ReferenceCount)
	if p.IsOpenAccess {
		b.WriteString("- **Open Access**: yes\n")
	}
	b.WriteString("\n")
}

func writeSummary(b *strings.Builder, p *models.Paper) {
	if p.Summary == "" {
		return
	}
	b.WriteString("## Summary\n\n")
	b.WriteString(p.Summary)
	b.WriteString("\n\n")
}

func writeAbstract(b *strings.Builder, p *models.Paper) {
	if p.Abstract == "" {
		return
	}
	abstract := p.Abstract
	// Some catalogs deliver abstracts as HTML fragments
	if strings.Contains(abstract, "<") && strings.Contains(abstract, ">") {
		if converted, err := htmlConverter.ConvertString(abstract); err == nil {
			abstract = converted
		}
	}
	b.WriteString("## Abstract\n\n")
	b.WriteString(strings.TrimSpace(abstract))
	b.WriteString("\n\n")
}

func writeRelations(b *strings.Builder, heading string, edges []models.PaperRelation) {
	if len(edges) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)

	byHop := map[int][]models.PaperRelation{}
	hops := []int{}
	for _, edge := range edges {
		if _, seen := byHop[edge.HopCount]; !seen {
			hops = append(hops, edge.HopCount)
		}
		byHop[edge.HopCount] = append(byHop[edge.HopCount], edge)
	}
	sort.Ints(hops)

	for _, hop := range hops {
		fmt.Fprintf(b, "### Hop %d\n\n", hop)
		for _, edge := range byHop[hop] {
			fmt.Fprintf(b, "- [[%s]]\n", SanitizeFilename(edge.TargetPaperID))
		}
		b.WriteString("\n")
	}
}

func writeKeywords(b *strings.Builder, keywords []*models.Keyword) {
	if len(keywords) == 0 {
		return
	}
	b.WriteString("## Keywords\n\n")
	for _, kw := range sortedKeywords(keywords) {
		fmt.Fprintf(b, "- %s\n", kw.Keyword)
	}
	b.WriteString("\n")
}

func writeExternalLinks(b *strings.Builder, ids []*models.ExternalID) {
	if len(ids) == 0 {
		return
	}
	b.WriteString("## External Links\n\n")
	for _, id := range ids {
		switch id.IDType {
		case models.IDTypeDOI:
			fmt.Fprintf(b, "- [DOI](https://doi.org/%s)\n", id.ExternalID)
		case models.IDTypeArXiv:
			fmt.Fprintf(b, "- [arXiv](https://arxiv.org/abs/%s)\n", id.ExternalID)
		case models.IDTypePubMed:
			fmt.Fprintf(b, "- [PubMed](https://pubmed.ncbi.nlm.nih.gov/%s/)\n", id.ExternalID)
		default:
			fmt.Fprintf(b, "- %s: %s\n", id.IDType, id.ExternalID)
		}
	}
	b.WriteString("\n")
}

func writeMetadata(b *strings.Builder, p *models.Paper) {
	b.WriteString("## Metadata\n\n")
	fmt.Fprintf(b, "- **Paper ID**: %s\n", p.PaperID)
	fmt.Fprintf(b, "- **Crawl status**: %s\n", p.CrawlStatus)
	fmt.Fprintf(b, "- **PDF status**: %s\n", p.PDFStatus)
	fmt.Fprintf(b, "- **Summary status**: %s\n", p.SummaryStatus)
	if p.SummaryModel != "" {
		fmt.Fprintf(b, "- **Summary model**: %s\n", p.SummaryModel)
	}
	if p.LastCrawledAt != nil {
		fmt.Fprintf(b, "- **Last crawled**: %s\n", p.LastCrawledAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(b, "- **Updated**: %s\n", p.UpdatedAt.UTC().Format(time.RFC3339))
}

func sortedKeywords(keywords []*models.Keyword) []*models.Keyword {
	sorted := make([]*models.Keyword, len(keywords))
	copy(sorted, keywords)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Relevance > sorted[j].Relevance
	})
	return sorted
}

func tagSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}
