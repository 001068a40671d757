// -----------------------------------------------------------------------
// PDF Fetcher - Download open-access PDFs with redirect, size and
// content-type limits; landing pages are resolved via citation_pdf_url
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
)

var pdfMagic = []byte("%PDF-")

// Fetcher implements the PDFFetcher interface. Publisher landing pages
// served as HTML get one second chance through their citation_pdf_url
// meta tag; anything else that is not a PDF is unavailable, not an error.
type Fetcher struct {
	httpClient *http.Client
	cache      interfaces.PDFCache
	config     *common.PDFConfig
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PDFFetcher = (*Fetcher)(nil)

// NewFetcher creates a PDF fetcher. Fetched bytes are written through to
// the cache keyed by content hash.
func NewFetcher(cfg *common.PDFConfig, cache interfaces.PDFCache, logger arbor.ILogger) *Fetcher {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	if cache == nil {
		cache = interfaces.PDFCache(nopCache{})
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: common.Duration(cfg.Timeout),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("%w: too many redirects", interfaces.ErrPDFUnavailable)
				}
				return nil
			},
		},
		cache:  cache,
		config: cfg,
		logger: logger,
	}
}

// Fetch downloads the PDF at rawURL. HTML responses are parsed once for a
// citation_pdf_url pointer before giving up.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*interfaces.PDFFile, error) {
	return f.fetch(ctx, rawURL, true)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, followLanding bool) (*interfaces.PDFFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrPDFUnavailable, err)
	}
	req.Header.Set("User-Agent", "RefNet/"+common.GetVersion())
	req.Header.Set("Accept", "application/pdf,text/html;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, interfaces.ErrPDFUnavailable) {
			return nil, fmt.Errorf("%w: too many redirects", interfaces.ErrPDFUnavailable)
		}
		// Network failures stay plain errors so the caller can retry
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// continue below
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("failed to fetch %s: status %d", rawURL, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", interfaces.ErrPDFUnavailable, resp.StatusCode)
	}

	body, err := f.readBounded(resp.Body)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if isPDF(contentType, body) {
		return f.finish(ctx, body)
	}

	if followLanding && strings.Contains(contentType, "text/html") {
		if pdfURL := findCitationPDFURL(body, resp.Request.URL); pdfURL != "" {
			f.logger.Debug().
				Str("landing", rawURL).
				Str("pdf_url", pdfURL).
				Msg("Following citation_pdf_url from landing page")
			return f.fetch(ctx, pdfURL, false)
		}
	}

	return nil, fmt.Errorf("%w: content type %s", interfaces.ErrPDFUnavailable, contentType)
}

func (f *Fetcher) readBounded(r io.Reader) ([]byte, error) {
	maxBody := f.config.MaxBodySize
	if maxBody <= 0 {
		maxBody = 50 * 1024 * 1024
	}

	body, err := io.ReadAll(io.LimitReader(r, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", interfaces.ErrPDFUnavailable, maxBody)
	}
	return body, nil
}

func (f *Fetcher) finish(ctx context.Context, body []byte) (*interfaces.PDFFile, error) {
	sum := sha256.Sum256(body)
	file := &interfaces.PDFFile{
		Data: body,
		Hash: hex.EncodeToString(sum[:]),
		Size: int64(len(body)),
	}

	if err := f.cache.Put(ctx, file.Hash, body); err != nil {
		// Cache trouble never fails the fetch
		f.logger.Warn().Err(err).Str("hash", file.Hash).Msg("Failed to cache PDF")
	}
	return file, nil
}

func isPDF(contentType string, body []byte) bool {
	if strings.Contains(contentType, "application/pdf") {
		return bytes.HasPrefix(body, pdfMagic)
	}
	// Some hosts serve PDFs as octet-stream; trust the magic bytes
	if strings.Contains(contentType, "application/octet-stream") {
		return bytes.HasPrefix(body, pdfMagic)
	}
	return false
}

// findCitationPDFURL looks for the Highwire Press citation_pdf_url meta
// tag used by most publisher landing pages.
func findCitationPDFURL(html []byte, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	content, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content")
	if !ok || content == "" {
		return ""
	}

	ref, err := url.Parse(content)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

type nopCache struct{}

func (nopCache) Get(ctx context.Context, hash string) ([]byte, bool, error) { return nil, false, nil }
func (nopCache) Put(ctx context.Context, hash string, data []byte) error    { return nil }
func (nopCache) Close() error                                               { return nil }
