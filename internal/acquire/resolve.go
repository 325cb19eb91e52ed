// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// IdentifierType classifies a paper identifier.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypeArxiv
	TypeDOI
	TypeURL
)

func (t IdentifierType) String() string {
	switch t {
	case TypeArxiv:
		return "arxiv"
	case TypeDOI:
		return "doi"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// Base URLs for identifier resolution. Declared as vars so tests can
// substitute httptest servers.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	doiBase      = "https://doi.org/"
)

var (
	// arxivPattern matches modern arXiv IDs: "2301.07041", "arXiv:2301.07041v2".
	arxivPattern = regexp.MustCompile(`(?i)^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

	// legacyArxivPattern matches pre-2007 IDs: "hep-th/9901001", "math.GT/0309136".
	legacyArxivPattern = regexp.MustCompile(`(?i)^(?:arXiv:)?([a-z-]+(?:\.[A-Z]{2})?/\d{7}(?:v\d+)?)$`)

	// doiPattern matches DOIs: "10.1145/1234567.1234568".
	doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
)

// Classify determines the identifier type and returns the normalized form.
// For arXiv, it strips the optional "arXiv:" prefix.
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if m := arxivPattern.FindStringSubmatch(identifier); m != nil {
		return TypeArxiv, m[1]
	}
	if m := legacyArxivPattern.FindStringSubmatch(identifier); m != nil {
		return TypeArxiv, m[1]
	}
	if doiPattern.MatchString(identifier) {
		return TypeDOI, identifier
	}
	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return TypeURL, identifier
	}
	return TypeUnknown, identifier
}

// Slug returns a filesystem-safe filename stem for the identifier.
// Legacy arXiv IDs have their slash replaced ("hep-th/9901001" gives
// "hep-th_9901001").
func Slug(idType IdentifierType, normalized string) string {
	switch idType {
	case TypeArxiv:
		return strings.ReplaceAll(normalized, "/", "_")
	case TypeDOI:
		return strings.NewReplacer("/", "-", ":", "-").Replace(normalized)
	case TypeURL:
		u, err := url.Parse(normalized)
		if err != nil {
			return urlHashSlug(normalized)
		}
		base := strings.TrimSuffix(filepath.Base(u.Path), filepath.Ext(u.Path))
		if base == "" || base == "." || base == "/" {
			return urlHashSlug(normalized)
		}
		return base
	default:
		return "unknown"
	}
}

// PDFURL returns the download URL for the identifier. DOIs go through the
// doi.org resolver, whose redirects the HTTP client follows.
func PDFURL(idType IdentifierType, normalized string) string {
	switch idType {
	case TypeArxiv:
		return arxivPDFBase + normalized
	case TypeDOI:
		return doiBase + normalized
	case TypeURL:
		return normalized
	default:
		return ""
	}
}

func urlHashSlug(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url-%x", h[:8])
}
