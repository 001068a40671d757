package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/refnet/internal/common"
)

// buildPDF renders the given lines into a minimal single-page PDF.
func buildPDF(t *testing.T, lines ...string) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	for _, line := range lines {
		doc.Cell(0, 10, line)
		doc.Ln(12)
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestExtractTextFromGeneratedPDF(t *testing.T) {
	extractor := NewExtractor(10, common.GetLogger())

	data := buildPDF(t,
		"Attention mechanisms allow modeling of dependencies",
		"without regard to their distance in sequences.",
	)

	text, err := extractor.ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, text, "Attention mechanisms")
	assert.Contains(t, text, "distance in sequences")
}

func TestExtractTextTooShortReturnsEmpty(t *testing.T) {
	extractor := NewExtractor(10_000, common.GetLogger())

	data := buildPDF(t, "short")

	text, err := extractor.ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractTextGarbageInput(t *testing.T) {
	extractor := NewExtractor(100, common.GetLogger())

	text, err := extractor.ExtractText(context.Background(), []byte("not a pdf at all"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractTextConcurrentDocumentsStayIsolated(t *testing.T) {
	extractor := NewExtractor(10, common.GetLogger())

	alpha := buildPDF(t, "ALPHA attention mechanisms in sequence transduction")
	bravo := buildPDF(t, "BRAVO residual connections in deep convolutional networks")

	var wg sync.WaitGroup
	failures := make(chan string, 40)
	extract := func(data []byte, own, other string) {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			text, err := extractor.ExtractText(context.Background(), data)
			if err != nil {
				failures <- fmt.Sprintf("%s round %d: %v", own, i, err)
				return
			}
			if !strings.Contains(text, own) {
				failures <- fmt.Sprintf("%s round %d: own marker missing", own, i)
				return
			}
			if strings.Contains(text, other) {
				failures <- fmt.Sprintf("%s round %d: text contaminated with %s", own, i, other)
				return
			}
		}
	}

	wg.Add(2)
	go extract(alpha, "ALPHA", "BRAVO")
	go extract(bravo, "BRAVO", "ALPHA")
	wg.Wait()
	close(failures)

	for msg := range failures {
		t.Error(msg)
	}
}

func TestScanLiteralStrings(t *testing.T) {
	stream := []byte(`BT /F1 12 Tf (Hello) Tj (World \(escaped\)) Tj ET`)
	text := scanLiteralStrings(stream)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "World (escaped)")
}

func TestCanonicalize(t *testing.T) {
	in := "Title\r\n\r\n\r\n\r\nBody   with\tspaces  \nsecond line\r\n"
	out := Canonicalize(in)
	assert.Equal(t, "Title\n\nBody with spaces\nsecond line", out)
}

func TestCanonicalizeEmpty(t *testing.T) {
	assert.Empty(t, Canonicalize("  \r\n \n "))
}
