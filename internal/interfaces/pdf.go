package interfaces

import (
	"context"
	"errors"
)

// ErrPDFUnavailable is returned by Fetch when the URL does not yield a
// usable PDF (bad content type, oversized body, dead link). The summarize
// stage records pdf_status=unavailable and does not retry.
var ErrPDFUnavailable = errors.New("pdf unavailable")

// PDFFile is a fetched PDF with its content hash.
type PDFFile struct {
	Data []byte
	Hash string // SHA-256 hex
	Size int64
}

// PDFFetcher downloads open-access PDFs.
type PDFFetcher interface {
	// Fetch downloads url, following a bounded number of redirects and
	// enforcing content type and size limits. Returns ErrPDFUnavailable
	// for anything that is not a usable PDF.
	Fetch(ctx context.Context, url string) (*PDFFile, error)
}

// PDFExtractor converts PDF bytes to canonicalized plain text.
type PDFExtractor interface {
	// ExtractText returns the canonicalized body text, or "" when neither
	// the primary nor the fallback extractor produced anything.
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// PDFCache stores fetched PDF bytes by content hash so re-crawls skip the
// download.
type PDFCache interface {
	Get(ctx context.Context, hash string) ([]byte, bool, error)
	Put(ctx context.Context, hash string, data []byte) error
	Close() error
}
