package source

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/paperpulse/paperpulse/internal/record"
)

const (
	// ConferenceSourceName identifies the conference-listing source.
	ConferenceSourceName = "conference"

	// DefaultConferenceRateLimit keeps the scraper polite.
	DefaultConferenceRateLimit = 2.0

	// maxListingBytes bounds how much of a listing page is read.
	maxListingBytes = 4 << 20
)

// Listing page markup: each accepted paper is rendered as
//
//	<li class="paper"><a href="/papers/123">Title Here</a> <span class="year">2023</span></li>
var (
	listingEntryRe = regexp.MustCompile(`<li class="paper">\s*<a href="([^"]+)">([^<]+)</a>(?:\s*<span class="year">(\d{4})</span>)?`)
	nextPageRe     = regexp.MustCompile(`<a class="next" href="[^"]*[?&]page=(\d+)"`)
)

// Conference scrapes accepted-paper listing pages from a conference site.
type Conference struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// NewConference creates the conference-listing adapter.
func NewConference(baseURL string, limiter *rate.Limiter) *Conference {
	if limiter == nil {
		limiter = NewLimiter(DefaultConferenceRateLimit, 1)
	}
	return &Conference{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name implements Adapter.
func (c *Conference) Name() string { return ConferenceSourceName }

// IsTransient implements Adapter.
func (c *Conference) IsTransient(err error) bool { return IsTransient(err) }

// Fetch implements Adapter. Cursor is the listing page number.
func (c *Conference) Fetch(ctx context.Context, params Params, cursor string) (Page, error) {
	pageNum := 1
	if cursor != "" {
		var err error
		if pageNum, err = strconv.Atoi(cursor); err != nil || pageNum < 1 {
			return Page{}, fmt.Errorf("%w: bad cursor %q", ErrInvalidResponse, cursor)
		}
	}

	body, err := c.fetchPage(ctx, pageNum)
	if err != nil {
		return Page{}, err
	}

	now := time.Now().UTC()
	var page Page
	for _, m := range listingEntryRe.FindAllStringSubmatch(body, -1) {
		href, title := m[1], strings.TrimSpace(html.UnescapeString(m[2]))
		if title == "" {
			continue
		}
		year := 0
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		page.Candidates = append(page.Candidates, record.Candidate{
			Title:     title,
			Published: record.PublicationDate{Year: year},
			SourceURL: c.absoluteURL(href),
			Source:    ConferenceSourceName,
			NativeID:  href,
			FetchedAt: now,
		})
	}

	if m := nextPageRe.FindStringSubmatch(body); m != nil {
		page.NextCursor = m[1]
	} else {
		page.Done = true
	}
	return page, nil
}

// fetchPage retrieves one listing page of the conference site.
func (c *Conference) fetchPage(ctx context.Context, pageNum int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/accepted?page=%d", c.baseURL, pageNum)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	req.Header.Set("User-Agent", "paperpulse-crawler")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusNotFound:
		return "", ErrNotFound
	case http.StatusTooManyRequests:
		return "", ErrRateLimited
	default:
		return "", &APIError{Source: ConferenceSourceName, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return string(body), nil
}

// absoluteURL resolves a listing href against the site base.
func (c *Conference) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return c.baseURL + "/" + strings.TrimLeft(href, "/")
}
