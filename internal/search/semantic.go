// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/paper-podcast/internal/httputil"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate"

// SemanticScholarBackend queries the Semantic Scholar API. Only papers with
// an arXiv identifier can be downloaded later, but the others are still
// listed so the user sees them.
type SemanticScholarBackend struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return "semantic_scholar" }

// Search queries the Semantic Scholar API.
func (b *SemanticScholarBackend) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticFields},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(sr.Data))
	for i, paper := range sr.Data {
		r := types.SearchResult{
			Title:          paper.Title,
			Abstract:       paper.Abstract,
			Source:         "semantic_scholar",
			RelevanceScore: positionScore(i, len(sr.Data)),
		}
		for _, a := range paper.Authors {
			r.Authors = append(r.Authors, a.Name)
		}
		if paper.PublicationDate != "" {
			if t, perr := time.Parse("2006-01-02", paper.PublicationDate); perr == nil {
				r.Date = t
			}
		} else if paper.Year > 0 {
			r.Date = time.Date(paper.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		}

		switch {
		case paper.ExternalIDs.ArXiv != "":
			r.Identifier = paper.ExternalIDs.ArXiv
			r.ArxivID = paper.ExternalIDs.ArXiv
		case paper.ExternalIDs.DOI != "":
			r.Identifier = paper.ExternalIDs.DOI
		default:
			r.Identifier = paper.PaperID
		}
		results = append(results, r)
	}
	return results, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}
