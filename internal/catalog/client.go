// -----------------------------------------------------------------------
// Catalog Client - Bibliographic catalog HTTP client with token-bucket
// rate limiting and classified retries
// -----------------------------------------------------------------------

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
)

const paperFields = "paperId,title,abstract,year,citationCount,referenceCount," +
	"isOpenAccess,openAccessPdf,authors,publicationVenue,journal,externalIds,fieldsOfStudy"

// Client talks to a Semantic Scholar Graph-style catalog API. All outbound
// requests pass through one token bucket; retries share the bucket and are
// never refunded.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      common.RetryPolicy
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.CatalogClient = (*Client)(nil)

// NewClient creates a catalog client from config. The rate limiter is
// process-wide; in multi-process deployments divide the catalog quota
// across processes via config.
func NewClient(cfg *common.CatalogConfig, retry common.RetryPolicy, logger arbor.ILogger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: common.Duration(cfg.Timeout)},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		retry:      retry,
		logger:     logger,
	}
}

// GetPaper fetches one paper with the full field set.
func (c *Client) GetPaper(ctx context.Context, paperID string) (*interfaces.CatalogPaper, error) {
	params := url.Values{}
	params.Set("fields", paperFields)

	body, err := c.get(ctx, "GetPaper", fmt.Sprintf("/paper/%s", url.PathEscape(paperID)), params)
	if err != nil {
		return nil, err
	}

	var result paperResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &Error{Kind: KindPermanent, Op: "GetPaper", Err: fmt.Errorf("malformed response: %w", err)}
	}
	return normalize(&result), nil
}

// GetCitations lists papers citing paperID. A 404 yields an empty slice.
func (c *Client) GetCitations(ctx context.Context, paperID string, limit, offset int) ([]*interfaces.CatalogPaper, error) {
	return c.listNeighbors(ctx, "GetCitations", paperID, "citations", limit, offset)
}

// GetReferences lists papers cited by paperID. A 404 yields an empty slice.
func (c *Client) GetReferences(ctx context.Context, paperID string, limit, offset int) ([]*interfaces.CatalogPaper, error) {
	return c.listNeighbors(ctx, "GetReferences", paperID, "references", limit, offset)
}

func (c *Client) listNeighbors(ctx context.Context, op, paperID, kind string, limit, offset int) ([]*interfaces.CatalogPaper, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	params := url.Values{}
	params.Set("fields", paperFields)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.get(ctx, op, fmt.Sprintf("/paper/%s/%s", url.PathEscape(paperID), kind), params)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindPermanent, Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}

	papers := make([]*interfaces.CatalogPaper, 0, len(resp.Data))
	for _, entry := range resp.Data {
		result := entry.CitingPaper
		if result == nil {
			result = entry.CitedPaper
		}
		if result == nil || result.PaperID == "" {
			continue
		}
		papers = append(papers, normalize(result))
	}
	return papers, nil
}

// Search runs a free-text paper search in catalog ranking order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*interfaces.CatalogPaper, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", paperFields)

	body, err := c.get(ctx, "Search", "/paper/search", params)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindPermanent, Op: "Search", Err: fmt.Errorf("malformed response: %w", err)}
	}

	papers := make([]*interfaces.CatalogPaper, 0, len(resp.Data))
	for i := range resp.Data {
		if resp.Data[i].PaperID == "" {
			continue
		}
		papers = append(papers, normalize(&resp.Data[i]))
	}
	return papers, nil
}

// get performs one rate-limited GET with classified retries. Each attempt
// waits on the token bucket again; a 429 Retry-After extends the wait.
func (c *Client) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	var body []byte
	err := c.retry.Do(ctx, IsRetryable, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindTransient, Op: op, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return &Error{Kind: KindPermanent, Op: op, Err: err}
		}
		req.Header.Set("User-Agent", "RefNet/"+common.GetVersion())
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &Error{Kind: KindTransient, Op: op, Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return &Error{Kind: KindTransient, Op: op, Err: err}
			}
			body = data
			return nil

		case resp.StatusCode == http.StatusNotFound:
			return &Error{Kind: KindNotFound, StatusCode: resp.StatusCode, Op: op}

		case resp.StatusCode == http.StatusTooManyRequests:
			c.sleepRetryAfter(ctx, resp)
			return &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode, Op: op}

		case resp.StatusCode >= 500:
			return &Error{Kind: KindTransient, StatusCode: resp.StatusCode, Op: op}

		default:
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &Error{
				Kind:       KindPermanent,
				StatusCode: resp.StatusCode,
				Op:         op,
				Err:        fmt.Errorf("unexpected status: %s", string(data)),
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// sleepRetryAfter honors a Retry-After header before the backoff sleep the
// retry policy will add on top.
func (c *Client) sleepRetryAfter(ctx context.Context, resp *http.Response) {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return
	}

	c.logger.Debug().
		Int("retry_after_seconds", seconds).
		Msg("Catalog requested backoff")

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(seconds) * time.Second):
	}
}

// normalize converts a wire record to the catalog-independent form.
func normalize(r *paperResult) *interfaces.CatalogPaper {
	p := &interfaces.CatalogPaper{
		PaperID:        r.PaperID,
		Title:          r.Title,
		Abstract:       r.Abstract,
		Year:           r.Year,
		CitationCount:  r.CitationCount,
		ReferenceCount: r.ReferenceCount,
		InfluenceScore: r.InfluenceScore,
		IsOpenAccess:   r.IsOpenAccess,
		Language:       r.Language,
		FieldsOfStudy:  r.FieldsOfStudy,
		ExternalIDs:    map[string]string{},
	}

	if r.OpenAccessPDF != nil {
		p.PDFURL = r.OpenAccessPDF.URL
	}
	if r.Venue != nil {
		p.VenueName = r.Venue.Name
		p.VenueType = r.Venue.Type
	}
	if r.Journal != nil {
		p.JournalName = r.Journal.Name
	}

	for idType, value := range r.ExternalIDs {
		// External ids arrive as strings or numbers depending on registry
		switch v := value.(type) {
		case string:
			if v != "" {
				p.ExternalIDs[idType] = v
			}
		case float64:
			p.ExternalIDs[idType] = strconv.FormatInt(int64(v), 10)
		}
	}

	for _, a := range r.Authors {
		if a.AuthorID == "" && a.Name == "" {
			continue
		}
		p.Authors = append(p.Authors, interfaces.CatalogAuthor{
			AuthorID:      a.AuthorID,
			Name:          a.Name,
			PaperCount:    a.PaperCount,
			CitationCount: a.CitationCount,
			HIndex:        a.HIndex,
			ORCID:         a.ORCID,
		})
	}

	return p
}
