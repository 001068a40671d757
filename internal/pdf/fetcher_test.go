package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
)

type memCache struct {
	blobs map[string][]byte
}

func newMemCache() *memCache { return &memCache{blobs: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	data, ok := c.blobs[hash]
	return data, ok, nil
}

func (c *memCache) Put(ctx context.Context, hash string, data []byte) error {
	c.blobs[hash] = data
	return nil
}

func (c *memCache) Close() error { return nil }

func newTestFetcher(cache interfaces.PDFCache) *Fetcher {
	return NewFetcher(&common.PDFConfig{
		MaxBodySize:  1 << 20,
		MaxRedirects: 3,
		Timeout:      "10s",
	}, cache, common.GetLogger())
}

func TestFetchPDF(t *testing.T) {
	body := []byte("%PDF-1.4 test document body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(body)
	}))
	defer server.Close()

	cache := newMemCache()
	fetcher := newTestFetcher(cache)

	file, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, body, file.Data)
	assert.Equal(t, int64(len(body)), file.Size)

	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), file.Hash)

	// Fetched bytes are written through to the cache.
	cached, ok, err := cache.Get(context.Background(), file.Hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, body, cached)
}

func TestFetchOctetStreamWithMagic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("%PDF-1.7 served without a proper content type"))
	}))
	defer server.Close()

	file, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.NotEmpty(t, file.Hash)
}

func TestFetchLandingPageFollowsCitationPDFURL(t *testing.T) {
	body := []byte("%PDF-1.4 behind a landing page")

	mux := http.NewServeMux()
	mux.HandleFunc("/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(body)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
			<meta name="citation_title" content="Some Paper">
			<meta name="citation_pdf_url" content="/paper.pdf">
		</head><body>Abstract here</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	file, err := newTestFetcher(nil).Fetch(context.Background(), server.URL+"/landing")
	require.NoError(t, err)
	assert.Equal(t, body, file.Data)
}

func TestFetchLandingPageWithoutPointerIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>No PDF here</body></html>`)
	}))
	defer server.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, interfaces.ErrPDFUnavailable)
}

func TestFetchLandingPageDoesNotRecurse(t *testing.T) {
	// The landing page points at itself; only one level is followed.
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><meta name="citation_pdf_url" content="%s"></head></html>`, server.URL)
	}))
	defer server.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, interfaces.ErrPDFUnavailable)
}

func TestFetchNotFoundIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, interfaces.ErrPDFUnavailable)
}

func TestFetchServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrPDFUnavailable)
}

func TestFetchOversizedBodyIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 "))
		w.Write(make([]byte, 2<<20))
	}))
	defer server.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, interfaces.ErrPDFUnavailable)
}

func TestFetchTooManyRedirectsIsUnavailable(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), server.URL+"/a")
	assert.ErrorIs(t, err, interfaces.ErrPDFUnavailable)
}

func TestFetchWrongMagicIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("<html>actually an error page</html>"))
	}))
	defer server.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, interfaces.ErrPDFUnavailable)
}
