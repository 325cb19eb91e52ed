// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-podcast pipeline:
// papers and search results, extracted text, podcast parameters, scripts,
// audio clips and artifacts, and the configuration tree.
package types

import "time"

// SearchResult is a candidate paper as returned by one search backend, before
// deduplication and ranking collapse it into a Paper.
type SearchResult struct {
	// Identifier is the canonical ID from the source (arXiv ID, DOI, or
	// backend-native ID).
	Identifier string `json:"identifier" yaml:"identifier"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Date is the publication or preprint date.
	Date time.Time `json:"date" yaml:"date"`

	// Source identifies which backend found this result (e.g. "arxiv", "semantic_scholar").
	Source string `json:"source" yaml:"source"`

	// RelevanceScore is a value between 0.0 and 1.0 indicating relevance to the query.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// ArxivID is set when the source knows the arXiv identifier. Only results
	// with an arXiv ID can be downloaded by the extraction stage.
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
}

// Paper converts the result into the summary carried by the pipeline.
// The arXiv ID is preferred as the paper ID when present.
func (r SearchResult) Paper() Paper {
	id := r.Identifier
	if r.ArxivID != "" {
		id = r.ArxivID
	}
	return Paper{
		ID:       id,
		Title:    r.Title,
		Authors:  append([]string(nil), r.Authors...),
		Abstract: r.Abstract,
		Date:     r.Date,
		Source:   r.Source,
	}
}
