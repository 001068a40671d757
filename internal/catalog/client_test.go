package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &common.CatalogConfig{
		BaseURL:           srv.URL,
		APIKey:            "test-key",
		RequestsPerSecond: 1000,
		Burst:             100,
		Timeout:           "5s",
	}
	policy := common.RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: 1,
		BackoffMax:  10,
	}

	return NewClient(cfg, policy, arbor.NewLogger()), srv
}

const paperJSON = `{
	"paperId": "p1",
	"title": "Attention Is All You Need",
	"abstract": "We propose the Transformer.",
	"year": 2017,
	"citationCount": 90000,
	"referenceCount": 30,
	"isOpenAccess": true,
	"openAccessPdf": {"url": "https://example.org/p1.pdf", "status": "GREEN"},
	"publicationVenue": {"id": "v1", "name": "NeurIPS", "type": "conference"},
	"journal": {"name": "Advances in NeurIPS 30"},
	"authors": [
		{"authorId": "a1", "name": "Ashish Vaswani", "hIndex": 40},
		{"authorId": "", "name": ""}
	],
	"externalIds": {"DOI": "10.5555/3295222", "CorpusId": 13756489, "MAG": ""},
	"fieldsOfStudy": ["Computer Science"]
}`

func TestClient_GetPaper(t *testing.T) {
	var gotPath, gotKey, gotFields string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotFields = r.URL.Query().Get("fields")
		fmt.Fprint(w, paperJSON)
	}))

	paper, err := client.GetPaper(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "/paper/p1", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Contains(t, gotFields, "citationCount")

	assert.Equal(t, "p1", paper.PaperID)
	assert.Equal(t, "Attention Is All You Need", paper.Title)
	require.NotNil(t, paper.Year)
	assert.Equal(t, 2017, *paper.Year)
	assert.Equal(t, 90000, paper.CitationCount)
	assert.Equal(t, "https://example.org/p1.pdf", paper.PDFURL)
	assert.Equal(t, "NeurIPS", paper.VenueName)
	assert.Equal(t, "conference", paper.VenueType)
	assert.Equal(t, "Advances in NeurIPS 30", paper.JournalName)

	// Empty author records are dropped
	require.Len(t, paper.Authors, 1)
	assert.Equal(t, "a1", paper.Authors[0].AuthorID)
	assert.Equal(t, 40, paper.Authors[0].HIndex)

	// Numeric external ids are stringified, empty ones dropped
	assert.Equal(t, "10.5555/3295222", paper.ExternalIDs["DOI"])
	assert.Equal(t, "13756489", paper.ExternalIDs["CorpusId"])
	assert.NotContains(t, paper.ExternalIDs, "MAG")
}

func TestClient_GetPaperNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetPaper(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestClient_GetCitationsUnwrapsEntries(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/p1/citations", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `{"offset": 0, "data": [
			{"citingPaper": %s},
			{"citingPaper": {"paperId": ""}},
			{}
		]}`, paperJSON)
	}))

	papers, err := client.GetCitations(context.Background(), "p1", 50, 0)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "p1", papers[0].PaperID)
}

func TestClient_GetReferences404IsEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	papers, err := client.GetReferences(context.Background(), "p1", 100, 0)
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, paperJSON)
	}))

	paper, err := client.GetPaper(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", paper.PaperID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := client.GetPaper(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, KindPermanent, KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ExhaustedRetriesStayRetryable(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetPaper(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Search(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/search", r.URL.Path)
		assert.Equal(t, "attention transformers", r.URL.Query().Get("query"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `{"total": 1, "offset": 0, "data": [%s]}`, paperJSON)
	}))

	// limit 0 falls back to the default page size
	papers, err := client.Search(context.Background(), "attention transformers", 0)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "Attention Is All You Need", papers[0].Title)
}

func TestClient_MalformedResponseIsPermanent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))

	_, err := client.GetPaper(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, KindPermanent, KindOf(err))
	assert.False(t, IsRetryable(err))
}
