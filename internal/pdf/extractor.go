// -----------------------------------------------------------------------
// PDF Extractor - Extract text content from PDF documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/interfaces"
)

// Extractor implements the PDFExtractor interface using pdfcpu, with a
// naive literal-string scan as fallback for documents whose content
// streams pdfcpu cannot decode.
type Extractor struct {
	logger       arbor.ILogger
	tempDir      string
	minTextChars int
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor.
func NewExtractor(minTextChars int, logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "refnet-pdf")
	os.MkdirAll(tempDir, 0755)

	if minTextChars <= 0 {
		minTextChars = 100
	}
	return &Extractor{
		logger:       logger,
		tempDir:      tempDir,
		minTextChars: minTextChars,
	}
}

// ExtractText extracts the canonicalized body text from PDF bytes. When
// the primary extraction yields less than the minimum useful length, the
// fallback scan runs; "" with a nil error means neither produced anything.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	text, err := e.extractWithPdfcpu(ctx, data)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Primary PDF extraction failed, trying fallback scan")
		text = ""
	}

	if len(text) < e.minTextChars {
		if fallback := scanLiteralStrings(data); len(fallback) > len(text) {
			text = fallback
		}
	}

	text = Canonicalize(text)
	if len(text) < e.minTextChars {
		return "", nil
	}
	return text, nil
}

func (e *Extractor) extractWithPdfcpu(ctx context.Context, data []byte) (string, error) {
	// pdfcpu works on files, not readers. Paths are per call: concurrent
	// extractions must never share a temp file.
	tempFile, err := os.CreateTemp(e.tempDir, "extract_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp PDF file: %w", err)
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp PDF file: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempName)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.tempDir, "pages_")
	if err != nil {
		return "", fmt.Errorf("failed to create page output directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempName, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	files, _ := os.ReadDir(outDir)
	pageTexts := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		pageNum, ok := pageNumberFromName(file.Name())
		if !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = scanLiteralStrings(content)
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if text, ok := pageTexts[pageNum]; ok && text != "" {
			if builder.Len() > 0 {
				builder.WriteString("\n\n")
			}
			builder.WriteString(text)
		}
	}
	return builder.String(), nil
}

// pageNumberFromName parses the page number out of an extracted content
// file name like "doc_Content_page_3.txt".
func pageNumberFromName(name string) (int, bool) {
	idx := strings.LastIndex(name, "page_")
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimPrefix(name[idx:], "page_")
	rest = strings.TrimSuffix(rest, filepath.Ext(rest))

	var pageNum int
	if _, err := fmt.Sscanf(rest, "%d", &pageNum); err != nil || pageNum < 1 {
		return 0, false
	}
	return pageNum, true
}

// scanLiteralStrings pulls text out of PDF content streams by collecting
// parenthesized literal strings, the encoding used by most text-showing
// operators. Crude but good enough as a fallback for the LLM input.
func scanLiteralStrings(data []byte) string {
	var builder strings.Builder
	depth := 0
	escaped := false

	for _, b := range data {
		if depth > 0 {
			if escaped {
				switch b {
				case 'n':
					builder.WriteByte('\n')
				case 't':
					builder.WriteByte(' ')
				case '(', ')', '\\':
					builder.WriteByte(b)
				}
				escaped = false
				continue
			}
			switch b {
			case '\\':
				escaped = true
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					builder.WriteByte(' ')
				}
			default:
				if b >= 0x20 && b < 0x7f {
					builder.WriteByte(b)
				}
			}
			continue
		}
		if b == '(' {
			depth = 1
		}
	}
	return builder.String()
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Canonicalize normalizes extracted text: CRLF to LF, whitespace runs
// collapsed, at most one blank line between paragraphs.
func Canonicalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")

	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
