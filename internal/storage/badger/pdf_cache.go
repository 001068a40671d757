// -----------------------------------------------------------------------
// PDF Cache - Content-addressed blob store so re-crawls skip the download
// -----------------------------------------------------------------------

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/refnet/internal/interfaces"
)

// PDFBlob is one cached PDF keyed by the SHA-256 of its bytes. Keying by
// content hash deduplicates mirrors serving identical files.
type PDFBlob struct {
	Hash     string `badgerhold:"key"`
	Data     []byte
	Size     int64
	StoredAt time.Time
}

// PDFCache implements interfaces.PDFCache over Badger.
type PDFCache struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PDFCache = (*PDFCache)(nil)

// NewPDFCache creates the blob cache.
func NewPDFCache(db *BadgerDB, logger arbor.ILogger) *PDFCache {
	return &PDFCache{db: db, logger: logger}
}

// Get returns the cached bytes for a content hash.
func (c *PDFCache) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	var blob PDFBlob
	if err := c.db.Store().Get(hash, &blob); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached pdf %s: %w", hash, err)
	}
	return blob.Data, true, nil
}

// Put stores PDF bytes under their content hash.
func (c *PDFCache) Put(ctx context.Context, hash string, data []byte) error {
	blob := &PDFBlob{
		Hash:     hash,
		Data:     data,
		Size:     int64(len(data)),
		StoredAt: time.Now().UTC(),
	}
	if err := c.db.Store().Upsert(hash, blob); err != nil {
		return fmt.Errorf("failed to cache pdf %s: %w", hash, err)
	}

	c.logger.Debug().
		Str("hash", hash).
		Int64("size", blob.Size).
		Msg("Cached PDF")
	return nil
}

// Close closes the underlying store.
func (c *PDFCache) Close() error {
	return c.db.Close()
}

// NopPDFCache is used when caching is disabled in config.
type NopPDFCache struct{}

var _ interfaces.PDFCache = (*NopPDFCache)(nil)

func (NopPDFCache) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	return nil, false, nil
}
func (NopPDFCache) Put(ctx context.Context, hash string, data []byte) error { return nil }
func (NopPDFCache) Close() error                                            { return nil }
