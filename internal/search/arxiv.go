// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-podcast/internal/httputil"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivBackend queries the arXiv API. Calls are spaced by a shared limiter,
// as arXiv asks clients to wait a few seconds between requests.
type ArxivBackend struct {
	Client    *http.Client
	UserAgent string
	limiter   *rate.Limiter
}

// NewArxivBackend returns a backend limited to one call per cfg.ArxivInterval.
func NewArxivBackend(client *http.Client, cfg types.SearchConfig) *ArxivBackend {
	limit := rate.Inf
	if cfg.ArxivInterval > 0 {
		limit = rate.Every(cfg.ArxivInterval)
	}
	return &ArxivBackend{Client: client, UserAgent: cfg.UserAgent, limiter: rate.NewLimiter(limit, 1)}
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return "arxiv" }

// Search runs a relevance-sorted free-text query.
func (b *ArxivBackend) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	q := buildArxivQuery(query)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(limit)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	return b.fetch(ctx, params)
}

// Lookup fetches one paper by identifier. arXiv answers an unknown id with
// an error entry, which is reported as not found.
func (b *ArxivBackend) Lookup(ctx context.Context, id string) (types.SearchResult, bool, error) {
	results, err := b.fetch(ctx, url.Values{"id_list": {id}})
	if err != nil {
		return types.SearchResult{}, false, err
	}
	for _, r := range results {
		if bareArxivID(r.ArxivID) == bareArxivID(id) {
			return r, true, nil
		}
	}
	return types.SearchResult{}, false, nil
}

func (b *ArxivBackend) fetch(ctx context.Context, params url.Values) ([]types.SearchResult, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var results []types.SearchResult
	for i, entry := range feed.Entries {
		id := extractArxivID(entry.ID)
		if id == "" {
			continue
		}
		r := types.SearchResult{
			Identifier:     id,
			ArxivID:        id,
			Title:          collapse(entry.Title),
			Abstract:       collapse(entry.Summary),
			Source:         "arxiv",
			RelevanceScore: positionScore(i, len(feed.Entries)),
		}
		for _, a := range entry.Authors {
			r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
		}
		if t, perr := time.Parse(time.RFC3339, entry.Published); perr == nil {
			r.Date = t
		}
		results = append(results, r)
	}
	return results, nil
}

// buildArxivQuery turns free text into an all-fields conjunction.
func buildArxivQuery(q string) string {
	terms := strings.Fields(q)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = "all:" + t
	}
	return strings.Join(terms, " AND ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

var versionSuffix = regexp.MustCompile(`v\d+$`)

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" gives "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return bareArxivID(idURL[idx+len(prefix):])
}

// bareArxivID strips the version suffix.
func bareArxivID(id string) string {
	return versionSuffix.ReplaceAllString(strings.TrimSpace(id), "")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
