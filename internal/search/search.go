// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries academic APIs and returns a unified, deduplicated
// candidate list. Service implements the pipeline's search collaborator.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Backend searches a single academic API.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error)
}

// Resolver looks up a paper by its arXiv identifier.
type Resolver interface {
	Lookup(ctx context.Context, id string) (types.SearchResult, bool, error)
}

// Service fans a query out to its backends and merges the results.
type Service struct {
	backends []Backend
	resolver Resolver
	cfg      types.SearchConfig
	log      *logrus.Entry
}

// New builds a Service from cfg. The arXiv backend doubles as the identifier
// resolver whether or not it takes part in text search.
func New(cfg types.SearchConfig, client *http.Client) *Service {
	arxiv := NewArxivBackend(client, cfg)
	var backends []Backend
	if cfg.EnableArxiv {
		backends = append(backends, arxiv)
	}
	if cfg.EnableSemanticScholar {
		backends = append(backends, &SemanticScholarBackend{Client: client, APIKey: cfg.SemanticScholarAPIKey, UserAgent: cfg.UserAgent})
	}
	return NewService(cfg, arxiv, backends...)
}

// NewService builds a Service over explicit backends.
func NewService(cfg types.SearchConfig, resolver Resolver, backends ...Backend) *Service {
	return &Service{backends: backends, resolver: resolver, cfg: cfg, log: logging.New("search")}
}

// Search runs query against every backend concurrently and returns the
// merged candidates, best first, capped at MaxResults. A failing backend is
// logged and skipped; Search fails only when every backend fails.
func (s *Service) Search(ctx context.Context, query string) ([]types.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if len(s.backends) == 0 {
		return nil, fmt.Errorf("no search backends configured")
	}

	// Results are kept per backend so merging is deterministic.
	perBackend := make([][]types.SearchResult, len(s.backends))
	errs := make([]error, len(s.backends))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism())
	for i, b := range s.backends {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results, err := b.Search(gctx, query, s.limit())
			if err != nil {
				// A cancelled search stops the group; a failing backend does not.
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				s.log.WithError(err).WithField("backend", b.Name()).Warn("backend failed")
				errs[i] = fmt.Errorf("%s: %w", b.Name(), err)
				return nil
			}
			perBackend[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []types.SearchResult
	failed := 0
	for i := range s.backends {
		if errs[i] != nil {
			failed++
			continue
		}
		all = append(all, perBackend[i]...)
	}
	if failed == len(s.backends) {
		return nil, errors.Join(errs...)
	}

	merged, removed := deduplicate(all)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RelevanceScore > merged[j].RelevanceScore
	})
	if len(merged) > s.limit() {
		merged = merged[:s.limit()]
	}
	s.log.WithFields(logrus.Fields{"query": query, "results": len(merged), "duplicates": removed}).Info("search done")
	return s.papers(merged), nil
}

// Lookup resolves an arXiv identifier. found is false when the identifier is
// unknown to arXiv.
func (s *Service) Lookup(ctx context.Context, id string) (types.Paper, bool, error) {
	if s.resolver == nil {
		return types.Paper{}, false, nil
	}
	r, found, err := s.resolver.Lookup(ctx, id)
	if err != nil || !found {
		return types.Paper{}, found, err
	}
	return s.papers([]types.SearchResult{r})[0], true, nil
}

func (s *Service) limit() int {
	if s.cfg.MaxResults > 0 {
		return s.cfg.MaxResults
	}
	return 10
}

func (s *Service) parallelism() int {
	if s.cfg.Parallelism > 0 {
		return s.cfg.Parallelism
	}
	return 2
}

func (s *Service) papers(results []types.SearchResult) []types.Paper {
	out := make([]types.Paper, len(results))
	for i, r := range results {
		p := r.Paper()
		p.Abstract = p.ShortAbstract(s.cfg.AbstractLimit)
		out[i] = p
	}
	return out
}

// deduplicate merges results that share an identifier or normalized title.
func deduplicate(results []types.SearchResult) ([]types.SearchResult, int) {
	seen := make(map[string]int)
	var deduped []types.SearchResult
	removed := 0

	for _, r := range results {
		keys := dedupKeys(r)
		idx, dup := -1, false
		for _, k := range keys {
			if i, ok := seen[k]; ok {
				idx, dup = i, true
				break
			}
		}
		if dup {
			mergeInto(&deduped[idx], r)
			removed++
		} else {
			idx = len(deduped)
			deduped = append(deduped, r)
		}
		for _, k := range dedupKeys(deduped[idx]) {
			seen[k] = idx
		}
	}
	return deduped, removed
}

func dedupKeys(r types.SearchResult) []string {
	var keys []string
	if r.ArxivID != "" {
		keys = append(keys, "arxiv:"+bareArxivID(r.ArxivID))
	}
	if r.Identifier != "" {
		keys = append(keys, "id:"+strings.ToLower(r.Identifier))
	}
	if t := normalizeTitle(r.Title); t != "" {
		keys = append(keys, "title:"+t)
	}
	return keys
}

// mergeInto fills empty fields of dst from src and keeps the higher score.
func mergeInto(dst *types.SearchResult, src types.SearchResult) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if len(src.Abstract) > len(dst.Abstract) {
		dst.Abstract = src.Abstract
	}
	if dst.Date.IsZero() {
		dst.Date = src.Date
	}
	if dst.ArxivID == "" {
		dst.ArxivID = src.ArxivID
	}
	if src.RelevanceScore > dst.RelevanceScore {
		dst.RelevanceScore = src.RelevanceScore
	}
	if src.Source != "" && !strings.Contains(dst.Source, src.Source) {
		dst.Source = dst.Source + "," + src.Source
	}
}

// normalizeTitle lowercases the title and strips punctuation.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// positionScore turns a rank within one backend's list into a relevance
// score between 0.1 and 1.0.
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}
