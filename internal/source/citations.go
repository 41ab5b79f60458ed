package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paperpulse/paperpulse/internal/record"
)

// CitationSourceName identifies the citation-expansion source.
const CitationSourceName = "citation-expansion"

// referencesResponse is the wire shape of a paper's reference list.
type referencesResponse struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Data   []struct {
		CitedPaper   apiPaper `json:"citedPaper"`
		RawReference string   `json:"rawReference"`
	} `json:"data"`
}

// CitationExpansion fetches the references of a known paper from the
// paper index, yielding the referenced papers as candidates. The raw
// reference strings are carried on the parent paper's bibliography so
// the citation matcher can link them.
type CitationExpansion struct {
	client *AcademicClient
}

// NewCitationExpansion creates the citation-expansion adapter. It shares
// the academic client, and with it the academic source's rate budget.
func NewCitationExpansion(client *AcademicClient) *CitationExpansion {
	return &CitationExpansion{client: client}
}

// Name implements Adapter.
func (c *CitationExpansion) Name() string { return CitationSourceName }

// IsTransient implements Adapter.
func (c *CitationExpansion) IsTransient(err error) bool { return IsTransient(err) }

// Fetch implements Adapter. Params.NativeID addresses the paper whose
// references are expanded; cursor = offset into the reference list.
func (c *CitationExpansion) Fetch(ctx context.Context, params Params, cursor string) (Page, error) {
	if params.NativeID == "" {
		return Page{}, fmt.Errorf("%w: citation expansion requires a native paper ID", ErrInvalidResponse)
	}

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
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(pageSize))

	path := "/papers/" + url.PathEscape(params.NativeID) + "/references"
	var resp referencesResponse
	if err := c.client.getJSON(ctx, path, query, &resp); err != nil {
		return Page{}, err
	}

	now := time.Now().UTC()
	page := Page{Candidates: make([]record.Candidate, 0, len(resp.Data))}
	var rawRefs []string
	for _, ref := range resp.Data {
		if ref.CitedPaper.Title != "" {
			page.Candidates = append(page.Candidates, mapAPIPaper(ref.CitedPaper, CitationSourceName, now))
		}
		if ref.RawReference != "" {
			rawRefs = append(rawRefs, ref.RawReference)
		}
	}

	// Re-emit the citing paper carrying the raw reference text, so the
	// resolver attaches a bibliography the matcher can process.
	if len(rawRefs) > 0 {
		var citing apiPaper
		if err := c.client.getJSON(ctx, "/papers/"+url.PathEscape(params.NativeID), nil, &citing); err == nil && citing.Title != "" {
			cand := mapAPIPaper(citing, CitationSourceName, now)
			cand.Bibliography = strings.Join(rawRefs, "\n")
			page.Candidates = append(page.Candidates, cand)
		}
	}

	next := offset + len(resp.Data)
	if len(resp.Data) == 0 || next >= resp.Total {
		page.Done = true
	} else {
		page.NextCursor = strconv.Itoa(next)
	}
	return page, nil
}
