package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		input     string
		owner     string
		repo      string
		wantError bool
	}{
		{"https://github.com/pytorch/pytorch", "pytorch", "pytorch", false},
		{"http://github.com/owner/repo", "owner", "repo", false},
		{"github.com/owner/repo.name", "owner", "repo.name", false},
		{"https://github.com/owner/repo.git", "owner", "repo", false},
		{"https://github.com/owner/repo/", "owner", "repo", false},
		{"  https://github.com/owner/repo  ", "owner", "repo", false},
		{"https://gitlab.com/owner/repo", "", "", true},
		{"https://github.com/owner", "", "", true},
		{"not a url", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.input)
			if tt.wantError {
				if err == nil {
					t.Fatalf("ParseRepoURL(%q) parsed to %s/%s, want error", tt.input, owner, repo)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRepoURL(%q): %v", tt.input, err)
			}
			if owner != tt.owner || repo != tt.repo {
				t.Errorf("ParseRepoURL(%q) = %s/%s, want %s/%s", tt.input, owner, repo, tt.owner, tt.repo)
			}
		})
	}
}

func repoTestClient(srv *httptest.Server) *RepoMetrics {
	return NewRepoMetrics(
		WithRepoBaseURL(srv.URL),
		WithRepoLimiter(NewLimiter(10000, 10000)),
	)
}

func TestFetchStars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/example/project" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(repoInfo{FullName: "example/project", Stars: 4321})
	}))
	defer srv.Close()

	stars, err := repoTestClient(srv).FetchStars(context.Background(), "https://github.com/example/project")
	if err != nil {
		t.Fatalf("FetchStars: %v", err)
	}
	if stars != 4321 {
		t.Errorf("stars = %d, want 4321", stars)
	}
}

func TestFetchStarsBadURL(t *testing.T) {
	_, err := NewRepoMetrics().FetchStars(context.Background(), "https://example.com/not/github")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestRepoRateLimitDetection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := repoTestClient(srv).FetchStars(context.Background(), "https://github.com/example/project")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited for exhausted quota 403", err)
	}
}

func TestRepoForbiddenWithoutQuotaIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := repoTestClient(srv).FetchStars(context.Background(), "https://github.com/example/project")
	if !errors.Is(err, ErrAuthError) {
		t.Errorf("err = %v, want ErrAuthError", err)
	}
}

func TestRepoMetricsFetchCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/repositories" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(repoSearchResponse{
			TotalCount: 3,
			Items: []repoInfo{
				{
					FullName:    "lab/attention",
					Description: `Code for "Attention Is All You Need" (NeurIPS 2017)`,
					HTMLURL:     "https://github.com/lab/attention",
					Stars:       9000,
				},
				{
					FullName:    "lab/dotfiles",
					Description: "my personal dotfiles",
					HTMLURL:     "https://github.com/lab/dotfiles",
				},
				{
					FullName:    "lab/undated",
					Description: `Implementation of "A Paper With No Year In Sight"`,
					HTMLURL:     "https://github.com/lab/undated",
				},
			},
		})
	}))
	defer srv.Close()

	page, err := repoTestClient(srv).Fetch(context.Background(), Params{Query: "paper"}, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !page.Done {
		t.Error("3 of 3 results should finish the cursor")
	}
	if len(page.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2 (dotfiles repo has no quoted title)", len(page.Candidates))
	}

	withYear := page.Candidates[0]
	if withYear.Title != "Attention Is All You Need" {
		t.Errorf("title = %q", withYear.Title)
	}
	if withYear.Published.Year != 2017 {
		t.Errorf("year = %d, want 2017 from the description", withYear.Published.Year)
	}
	if withYear.RepoURL != "https://github.com/lab/attention" {
		t.Errorf("repo URL = %q", withYear.RepoURL)
	}

	noYear := page.Candidates[1]
	if noYear.Published.Year != 0 {
		t.Errorf("year = %d, want 0 when the description has none", noYear.Published.Year)
	}
}
