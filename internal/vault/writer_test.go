package vault

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()

	w, err := NewWriter(&common.VaultConfig{Path: t.TempDir()}, common.GetLogger())
	require.NoError(t, err)
	return w
}

func testDoc() *PaperDoc {
	year := 2017
	p := models.NewPlaceholderPaper("abc123")
	p.Title = "Attention Is All You Need"
	p.Abstract = "<p>The dominant sequence <b>transduction</b> models.</p>"
	p.Year = &year
	p.CitationCount = 90000
	p.ReferenceCount = 40
	p.Summary = "Introduces the Transformer architecture."
	p.SummaryModel = "claude-sonnet-4-20250514"
	p.CrawlStatus = models.StatusCompleted

	return &PaperDoc{
		Paper: p,
		Authors: []*models.Author{
			{AuthorID: "a1", Name: "Ashish Vaswani"},
			{AuthorID: "a2", Name: "Noam Shazeer"},
		},
		Keywords: []*models.Keyword{
			{Keyword: "attention", Relevance: 0.8},
			{Keyword: "transformers", Relevance: 0.9},
		},
		Neighbors: &models.Neighbors{
			Citations: []models.PaperRelation{
				{SourcePaperID: "abc123", TargetPaperID: "cite1", RelationType: models.RelationCitation, HopCount: 1},
			},
			References: []models.PaperRelation{
				{SourcePaperID: "abc123", TargetPaperID: "ref1", RelationType: models.RelationReference, HopCount: 1},
				{SourcePaperID: "abc123", TargetPaperID: "ref2", RelationType: models.RelationReference, HopCount: 2},
			},
		},
		ExternalIDs: []*models.ExternalID{
			{IDType: models.IDTypeDOI, ExternalID: "10.1000/xyz"},
			{IDType: models.IDTypeArXiv, ExternalID: "1706.03762"},
		},
		VenueName: "NeurIPS 2017",
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "abc123", SanitizeFilename("abc123"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i", SanitizeFilename(`a<b>c:d"e/f\g|h?i`))

	long := strings.Repeat("x", 300)
	assert.Len(t, SanitizeFilename(long), 100)
}

func TestRenderPaperSections(t *testing.T) {
	content, err := RenderPaper(testDoc())
	require.NoError(t, err)

	assert.Contains(t, content, "# Attention Is All You Need")
	assert.Contains(t, content, "## Basic Info")
	assert.Contains(t, content, "## Summary")
	assert.Contains(t, content, "Introduces the Transformer architecture.")
	assert.Contains(t, content, "## Abstract")
	assert.Contains(t, content, "## Citations")
	assert.Contains(t, content, "## References")
	assert.Contains(t, content, "### Hop 1")
	assert.Contains(t, content, "### Hop 2")
	assert.Contains(t, content, "[[ref1]]")
	assert.Contains(t, content, "## Keywords")
	assert.Contains(t, content, "## External Links")
	assert.Contains(t, content, "https://doi.org/10.1000/xyz")
	assert.Contains(t, content, "https://arxiv.org/abs/1706.03762")
	assert.Contains(t, content, "## Metadata")
}

func TestRenderPaperFrontMatter(t *testing.T) {
	content, err := RenderPaper(testDoc())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(content, "---\n"))
	end := strings.Index(content[4:], "---\n")
	require.Greater(t, end, 0)

	var fm map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(content[4:4+end]), &fm))

	assert.Equal(t, "abc123", fm["paper_id"])
	assert.Equal(t, "Attention Is All You Need", fm["title"])
	assert.Equal(t, 2017, fm["year"])
	assert.Equal(t, 90000, fm["citation_count"])
	assert.ElementsMatch(t, []any{"year/2017", "venue/neurips-2017"}, fm["tags"])
	// Keywords ordered by relevance desc.
	assert.Equal(t, []any{"transformers", "attention"}, fm["keywords"])
}

func TestRenderPaperConvertsHTMLAbstract(t *testing.T) {
	content, err := RenderPaper(testDoc())
	require.NoError(t, err)

	assert.NotContains(t, content, "<p>")
	assert.Contains(t, content, "**transduction**")
}

func TestRenderPaperParsesAsMarkdown(t *testing.T) {
	content, err := RenderPaper(testDoc())
	require.NoError(t, err)

	body := content[strings.Index(content, "\n---\n")+5:]
	var buf bytes.Buffer
	assert.NoError(t, goldmark.Convert([]byte(body), &buf))
	assert.NotZero(t, buf.Len())
}

func TestWritePaperAtomic(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.WritePaper(testDoc()))

	target := filepath.Join(w.Path(), "papers", "abc123.md")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Attention Is All You Need")

	// No tempfile leftovers.
	entries, err := os.ReadDir(filepath.Join(w.Path(), "papers"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Rewrites replace in place.
	require.NoError(t, w.WritePaper(testDoc()))
	entries, err = os.ReadDir(filepath.Join(w.Path(), "papers"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteIndex(t *testing.T) {
	w := newTestWriter(t)

	year := 2017
	top := models.NewPlaceholderPaper("abc123")
	top.Title = "Top Paper"
	top.CitationCount = 500
	top.Year = &year

	stats := &interfaces.GraphStats{
		TotalPapers:    12,
		TotalCitations: 3400,
		YearHistogram:  map[int]int{2017: 5, 2020: 7},
		TopCited:       []*models.Paper{top},
		MostRecent:     []*models.Paper{top},
	}
	require.NoError(t, w.WriteIndex(stats))

	data, err := os.ReadFile(filepath.Join(w.Path(), "README.md"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "**Papers**: 12")
	assert.Contains(t, content, "**Total citations**: 3400")
	assert.Contains(t, content, "2020: 7")
	assert.Contains(t, content, "Top Paper")
}

func TestEnsureViewerConfigWritesOnce(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.EnsureViewerConfig())
	target := filepath.Join(w.Path(), ".refnet", "graph.json")

	original, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(original), "citation_count")

	// A customized file is left alone.
	custom := []byte(`{"custom": true}`)
	require.NoError(t, os.WriteFile(target, custom, 0644))
	require.NoError(t, w.EnsureViewerConfig())

	after, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, custom, after)
}
