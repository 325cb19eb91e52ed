// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// semanticServer points semanticAPIBase at an httptest server for the
// duration of the test.
func semanticServer(t *testing.T, h http.HandlerFunc) *SemanticScholarBackend {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	old := semanticAPIBase
	semanticAPIBase = ts.URL
	t.Cleanup(func() { semanticAPIBase = old })

	return &SemanticScholarBackend{Client: ts.Client()}
}

func semanticJSON(papers ...string) http.HandlerFunc {
	body := fmt.Sprintf(`{"total":%d,"offset":0,"data":[%s]}`, len(papers), strings.Join(papers, ","))
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestSemanticSearchRequest(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		limit     int
		wantLimit string
	}{
		{"with API key", "test-key-123", 15, "15"},
		{"without API key", "", 15, "15"},
		{"default limit", "", 0, "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured *http.Request
			b := semanticServer(t, func(w http.ResponseWriter, r *http.Request) {
				captured = r
				semanticJSON()(w, r)
			})
			b.APIKey = tt.apiKey
			b.UserAgent = "test/0.1"

			_, err := b.Search(context.Background(), "attention", tt.limit)
			require.NoError(t, err)

			q := captured.URL.Query()
			assert.Equal(t, "attention", q.Get("query"))
			assert.Equal(t, tt.wantLimit, q.Get("limit"))
			for _, f := range []string{"title", "abstract", "authors", "externalIds", "publicationDate"} {
				assert.Contains(t, q.Get("fields"), f)
			}
			assert.Equal(t, "test/0.1", captured.Header.Get("User-Agent"))
			assert.Equal(t, tt.apiKey, captured.Header.Get("x-api-key"))
		})
	}
}

func TestSemanticSearchIdentifierPreference(t *testing.T) {
	tests := []struct {
		name      string
		paper     string
		wantID    string
		wantArxiv string
	}{
		{
			"arXiv preferred over DOI",
			`{"paperId":"abc","title":"P","authors":[],"externalIds":{"ArXiv":"1706.03762","DOI":"10.555/test"}}`,
			"1706.03762", "1706.03762",
		},
		{
			"DOI when no arXiv",
			`{"paperId":"def","title":"P","authors":[],"externalIds":{"DOI":"10.555/test"}}`,
			"10.555/test", "",
		},
		{
			"paperId when no arXiv or DOI",
			`{"paperId":"ghi789","title":"P","authors":[],"externalIds":{}}`,
			"ghi789", "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := semanticServer(t, semanticJSON(tt.paper))
			results, err := b.Search(context.Background(), "test", 10)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tt.wantID, results[0].Identifier)
			assert.Equal(t, tt.wantArxiv, results[0].ArxivID)
		})
	}
}

func TestSemanticSearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name:  "server error",
			query: "test",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: "HTTP 500",
		},
		{
			name:  "bad request",
			query: "test",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			wantErr: "HTTP 400",
		},
		{
			name:  "malformed JSON",
			query: "test",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{invalid json`)
			},
			wantErr: "parsing",
		},
		{
			name:    "empty query",
			query:   "",
			handler: semanticJSON(),
			wantErr: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := semanticServer(t, tt.handler)
			_, err := b.Search(context.Background(), tt.query, 10)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSemanticSearchZeroResults(t *testing.T) {
	b := semanticServer(t, semanticJSON())
	results, err := b.Search(context.Background(), "obscure topic xyz", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticSearchPositionScoring(t *testing.T) {
	var papers []string
	for i := range 5 {
		papers = append(papers, fmt.Sprintf(
			`{"paperId":"p%d","title":"Paper %d","authors":[],"externalIds":{"DOI":"10.%d/test"}}`, i, i, i))
	}
	b := semanticServer(t, semanticJSON(papers...))

	results, err := b.Search(context.Background(), "test", 10)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.InDelta(t, 1.0, results[0].RelevanceScore, 0.001)
	assert.InDelta(t, 0.1, results[4].RelevanceScore, 0.001)
	for i := 1; i < len(results); i++ {
		assert.Less(t, results[i].RelevanceScore, results[i-1].RelevanceScore)
	}
}

func TestSemanticSearchPaperFields(t *testing.T) {
	b := semanticServer(t, semanticJSON(`{
		"paperId":"x","title":"P","abstract":"We study things.",
		"year":2023,"publicationDate":"",
		"authors":[{"authorId":"1","name":"Alice Smith"},{"authorId":"2","name":"Bob Jones"}],
		"externalIds":{}}`))

	results, err := b.Search(context.Background(), "test", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, []string{"Alice Smith", "Bob Jones"}, r.Authors)
	assert.Equal(t, "We study things.", r.Abstract)
	assert.Equal(t, "semantic_scholar", r.Source)
	assert.Equal(t, 2023, r.Date.Year(), "year fallback without publicationDate")
	assert.Equal(t, 1.0, r.RelevanceScore)
	assert.Equal(t, "semantic_scholar", b.Name())
}
