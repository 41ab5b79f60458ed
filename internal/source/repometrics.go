package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/paperpulse/paperpulse/internal/record"
)

const (
	// RepoMetricsSourceName identifies the repository-metrics source.
	RepoMetricsSourceName = "repometrics"

	// DefaultRepoAPIBaseURL is the repository-hosting API base URL.
	DefaultRepoAPIBaseURL = "https://api.github.com"

	// DefaultRepoRateLimit respects unauthenticated API budgets.
	DefaultRepoRateLimit = 1.0
)

// repoURLPattern parses https://github.com/owner/repo style URLs.
var repoURLPattern = regexp.MustCompile(`^(?:https?://)?github\.com/([a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+?)(?:\.git)?/?$`)

// ParseRepoURL extracts (owner, repo) from a repository URL.
func ParseRepoURL(input string) (owner, repo string, err error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", "", fmt.Errorf("%w: unrecognized repository URL %q", ErrInvalidResponse, input)
	}
	return m[1], m[2], nil
}

// RepoMetrics talks to the repository-hosting API. It serves two roles:
// the metrics tracker's star-count fetcher, and a discovery adapter that
// surfaces trending paper-implementation repositories as candidates.
type RepoMetrics struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	baseURL    string
}

// RepoOption configures a RepoMetrics client.
type RepoOption func(*RepoMetrics)

// WithRepoToken sets the API token for authenticated requests.
func WithRepoToken(token string) RepoOption {
	return func(r *RepoMetrics) { r.token = token }
}

// WithRepoBaseURL sets a custom base URL (for testing).
func WithRepoBaseURL(u string) RepoOption {
	return func(r *RepoMetrics) { r.baseURL = strings.TrimRight(u, "/") }
}

// WithRepoLimiter injects the shared per-source rate limiter.
func WithRepoLimiter(l *rate.Limiter) RepoOption {
	return func(r *RepoMetrics) { r.limiter = l }
}

// NewRepoMetrics creates a repository-metrics client.
func NewRepoMetrics(opts ...RepoOption) *RepoMetrics {
	r := &RepoMetrics{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    NewLimiter(DefaultRepoRateLimit, 1),
		baseURL:    DefaultRepoAPIBaseURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// repoInfo is the wire shape of a repository object.
type repoInfo struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Stars       int    `json:"stargazers_count"`
}

// repoSearchResponse is the wire shape of a repository search result.
type repoSearchResponse struct {
	TotalCount int        `json:"total_count"`
	Items      []repoInfo `json:"items"`
}

// getJSON performs a rate-limited GET against the repo API.
func (r *RepoMetrics) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	u := r.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "paperpulse")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrAuthError
	case http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return ErrRateLimited
		}
		return ErrAuthError
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{Source: RepoMetricsSourceName, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// FetchStars returns the current star count for a repository URL.
// Implements the metrics tracker's StarsFetcher.
func (r *RepoMetrics) FetchStars(ctx context.Context, repoURL string) (int, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return 0, err
	}
	var info repoInfo
	if err := r.getJSON(ctx, "/repos/"+owner+"/"+repo, nil, &info); err != nil {
		return 0, err
	}
	return info.Stars, nil
}

// Name implements Adapter.
func (r *RepoMetrics) Name() string { return RepoMetricsSourceName }

// IsTransient implements Adapter.
func (r *RepoMetrics) IsTransient(err error) bool { return IsTransient(err) }

// paperTitleRe pulls a quoted paper title out of a repo description, the
// convention for implementation repos: `Code for "Attention Is All You Need"`.
var paperTitleRe = regexp.MustCompile(`[“"]([^”"]{10,200})[”"]`)

// descYearRe finds a publication year in a repo description, e.g.
// `(NeurIPS 2023)`. The repo creation date is deliberately not used as a
// fallback: a wrong year changes the identity hash and blocks dedup.
var descYearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Fetch implements Adapter: searches trending repositories whose
// descriptions name a paper, cursor = result page number.
func (r *RepoMetrics) Fetch(ctx context.Context, params Params, cursor string) (Page, error) {
	pageNum := 1
	if cursor != "" {
		var err error
		if pageNum, err = strconv.Atoi(cursor); err != nil || pageNum < 1 {
			return Page{}, fmt.Errorf("%w: bad cursor %q", ErrInvalidResponse, cursor)
		}
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 30
	}

	query := url.Values{}
	query.Set("q", params.Query)
	query.Set("sort", "stars")
	query.Set("page", strconv.Itoa(pageNum))
	query.Set("per_page", strconv.Itoa(pageSize))

	var resp repoSearchResponse
	if err := r.getJSON(ctx, "/search/repositories", query, &resp); err != nil {
		return Page{}, err
	}

	now := time.Now().UTC()
	var page Page
	for _, item := range resp.Items {
		m := paperTitleRe.FindStringSubmatch(item.Description)
		if m == nil {
			// Not recognizably a paper implementation; skip.
			continue
		}
		cand := record.Candidate{
			Title:     m[1],
			RepoURL:   item.HTMLURL,
			Source:    RepoMetricsSourceName,
			NativeID:  item.FullName,
			FetchedAt: now,
		}
		if y := descYearRe.FindString(item.Description); y != "" {
			year, _ := strconv.Atoi(y)
			cand.Published = record.PublicationDate{Year: year}
		}
		page.Candidates = append(page.Candidates, cand)
	}

	if len(resp.Items) < pageSize || pageNum*pageSize >= resp.TotalCount {
		page.Done = true
	} else {
		page.NextCursor = strconv.Itoa(pageNum + 1)
	}
	return page, nil
}
