// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"regexp"
	"strings"
	"time"
)

// Paper is the summary of one candidate paper: id, title, authors, abstract,
// plus the provenance fields filled in when the PDF is downloaded.
type Paper struct {
	// ID is the paper identifier (e.g. "1706.03762" or "hep-th/9901001").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Date is the publication or preprint date.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Source identifies the backend that found the paper.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// SourceURL is the URL from which the PDF was downloaded.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// PDFPath is the local filesystem path to the downloaded PDF.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
}

// ShortAbstract returns the abstract cut to at most limit runes, with an
// ellipsis when truncated. A non-positive limit returns the full abstract.
func (p Paper) ShortAbstract(limit int) string {
	a := strings.Join(strings.Fields(p.Abstract), " ")
	r := []rune(a)
	if limit <= 0 || len(r) <= limit {
		return a
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}

// Section is one heading-delimited part of an extracted paper.
type Section struct {
	Heading string `json:"heading" yaml:"heading"`
	Text    string `json:"text" yaml:"text"`
}

// ExtractedText is the plain text of a paper plus the statistics recorded
// alongside it.
type ExtractedText struct {
	// Text is the full plain text.
	Text string `json:"text" yaml:"text"`

	// WordCount is the number of whitespace-separated words in Text.
	WordCount int `json:"word_count" yaml:"word_count"`

	// PageCount is the number of pages, when the converter reports them.
	PageCount int `json:"page_count,omitempty" yaml:"page_count,omitempty"`

	// Sections holds the heuristic section split, in document order.
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
}

var (
	// modernArxivID matches YYMM.NNNN(N) with an optional version.
	modernArxivID = regexp.MustCompile(`(?i)(?:arxiv:\s*)?\b(\d{4}\.\d{4,5}(?:v\d+)?)\b`)
	// legacyArxivID matches archive(.subject)/YYMMNNN.
	legacyArxivID = regexp.MustCompile(`(?i)\b([a-z-]+(?:\.[a-z]{2})?/\d{7}(?:v\d+)?)\b`)
)

// FindArxivID returns the first arXiv identifier embedded in text. Modern
// identifiers are preferred over legacy archive/number ones.
func FindArxivID(text string) (string, bool) {
	if m := modernArxivID.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := legacyArxivID.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}
