package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/paperpulse/paperpulse/internal/record"
)

const (
	// AcademicSourceName identifies the paper-index source in provenance.
	AcademicSourceName = "academic"

	// DefaultAcademicBaseURL is the paper-index API base URL.
	DefaultAcademicBaseURL = "https://api.academicindex.org/v1"

	// DefaultAcademicRateLimit is the documented requests-per-second cap.
	DefaultAcademicRateLimit = 10.0

	// DefaultPageSize is the default page size for search requests.
	DefaultPageSize = 50
)

// AcademicClient is a rate-limited HTTP client for the academic paper
// index API. It is shared by the search adapter, the citation-expansion
// adapter, and the metrics tracker's citation-count fetcher.
type AcademicClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// AcademicOption configures an AcademicClient.
type AcademicOption func(*AcademicClient)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) AcademicOption {
	return func(c *AcademicClient) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) AcademicOption {
	return func(c *AcademicClient) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) AcademicOption {
	return func(c *AcademicClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLimiter injects the shared per-source rate limiter.
func WithLimiter(l *rate.Limiter) AcademicOption {
	return func(c *AcademicClient) { c.limiter = l }
}

// NewAcademicClient creates a paper-index API client.
func NewAcademicClient(opts ...AcademicOption) *AcademicClient {
	c := &AcademicClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    NewLimiter(DefaultAcademicRateLimit, 1),
		baseURL:    DefaultAcademicBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiPaper is the wire shape of one paper in API responses.
type apiPaper struct {
	PaperID         string `json:"paperId"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	Year            int    `json:"year"`
	PublicationDate string `json:"publicationDate"` // YYYY-MM-DD
	URL             string `json:"url"`
	RepoURL         string `json:"repoUrl"`
	CitationCount   int    `json:"citationCount"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// searchResponse is the wire shape of a paginated search result.
type searchResponse struct {
	Total  int        `json:"total"`
	Offset int        `json:"offset"`
	Next   int        `json:"next"`
	Data   []apiPaper `json:"data"`
}

// getJSON performs a rate-limited GET and decodes the JSON response.
func (c *AcademicClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthError
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{Source: AcademicSourceName, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// FetchCitationCount returns the current citation count for a paper's
// native ID. Used by the metrics tracker.
func (c *AcademicClient) FetchCitationCount(ctx context.Context, nativeID string) (int, error) {
	var paper apiPaper
	if err := c.getJSON(ctx, "/papers/"+url.PathEscape(nativeID), nil, &paper); err != nil {
		return 0, err
	}
	return paper.CitationCount, nil
}

// Academic is the search adapter over the paper index.
type Academic struct {
	client *AcademicClient
}

// NewAcademic creates the academic-index search adapter.
func NewAcademic(client *AcademicClient) *Academic {
	return &Academic{client: client}
}

// Name implements Adapter.
func (a *Academic) Name() string { return AcademicSourceName }

// IsTransient implements Adapter.
func (a *Academic) IsTransient(err error) bool { return IsTransient(err) }

// Fetch implements Adapter: one page of search results, cursor = offset.
func (a *Academic) Fetch(ctx context.Context, params Params, cursor string) (Page, error) {
	offset := 0
	if cursor != "" {
		var err error
		if offset, err = strconv.Atoi(cursor); err != nil {
			return Page{}, fmt.Errorf("%w: bad cursor %q", ErrInvalidResponse, cursor)
		}
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	query := url.Values{}
	query.Set("query", params.Query)
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(pageSize))
	if !params.From.IsZero() {
		query.Set("from", params.From.Format(record.DateFormat))
	}
	if !params.To.IsZero() {
		query.Set("to", params.To.Format(record.DateFormat))
	}

	var resp searchResponse
	if err := a.client.getJSON(ctx, "/papers/search", query, &resp); err != nil {
		return Page{}, err
	}

	now := time.Now().UTC()
	page := Page{Candidates: make([]record.Candidate, 0, len(resp.Data))}
	for _, p := range resp.Data {
		page.Candidates = append(page.Candidates, mapAPIPaper(p, AcademicSourceName, now))
	}

	next := offset + len(resp.Data)
	if len(resp.Data) == 0 || next >= resp.Total {
		page.Done = true
	} else {
		page.NextCursor = strconv.Itoa(next)
	}
	return page, nil
}

// mapAPIPaper normalizes a wire paper into the common candidate shape.
func mapAPIPaper(p apiPaper, sourceName string, fetchedAt time.Time) record.Candidate {
	cand := record.Candidate{
		Title:     p.Title,
		Abstract:  p.Abstract,
		Published: record.PublicationDate{Year: p.Year},
		SourceURL: p.URL,
		RepoURL:   p.RepoURL,
		Source:    sourceName,
		NativeID:  p.PaperID,
		FetchedAt: fetchedAt,
	}
	if t, err := time.Parse(record.DateFormat, p.PublicationDate); err == nil {
		cand.Published = record.PublicationDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
	}
	for _, a := range p.Authors {
		if a.Name != "" {
			cand.Authors = append(cand.Authors, record.Author{Name: a.Name})
		}
	}
	return cand
}
