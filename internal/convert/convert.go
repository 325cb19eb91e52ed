// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns a paper's PDF into plain text with pluggable
// backends, and Extractor ties download, conversion, and text statistics
// together for the pipeline.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-podcast/internal/container"
	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// textDir is the subdirectory under the papers base that caches converted text.
const textDir = "text"

// Converter transforms a PDF file into text. Different backends
// (pdftotext, markitdown) implement this interface.
type Converter interface {
	Name() string
	// Convert reads a PDF at pdfPath and returns its text.
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// New returns the converter selected by cfg.Backend.
func New(ctx context.Context, cfg types.ConversionConfig) (Converter, error) {
	switch cfg.Backend {
	case types.BackendPdftotext, "":
		tool, err := container.LookupTool("pdftotext")
		if err != nil {
			return nil, fmt.Errorf("pdftotext backend: %w (install poppler-utils)", err)
		}
		return &PdftotextConverter{tool: tool}, nil
	case types.BackendMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownConverter(ctx, rt, cfg.MarkitdownImage)
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", cfg.Backend)
	}
}

// Fetcher downloads a paper's PDF.
type Fetcher interface {
	Fetch(ctx context.Context, paper types.Paper) (types.Paper, bool, error)
}

// Extractor implements the pipeline's extraction collaborator: it downloads
// the selected paper, converts it, and reports word and page counts and a
// heuristic section split. Converted text is cached under
// papersDir/text so a paper is converted once.
type Extractor struct {
	fetch     Fetcher
	conv      Converter
	papersDir string
	log       *logrus.Entry
}

// NewExtractor builds an Extractor.
func NewExtractor(fetch Fetcher, conv Converter, papersDir string) *Extractor {
	return &Extractor{fetch: fetch, conv: conv, papersDir: papersDir, log: logging.New("convert")}
}

// Extract returns the text of paper.
func (e *Extractor) Extract(ctx context.Context, paper types.Paper) (types.ExtractedText, error) {
	p, _, err := e.fetch.Fetch(ctx, paper)
	if err != nil {
		return types.ExtractedText{}, err
	}

	base := strings.TrimSuffix(filepath.Base(p.PDFPath), filepath.Ext(p.PDFPath))
	cachePath := filepath.Join(e.papersDir, textDir, base+".txt")
	log := e.log.WithFields(logrus.Fields{"paper": paper.ID, "backend": e.conv.Name()})

	if data, err := os.ReadFile(cachePath); err == nil {
		log.Debug("using cached text")
		return Analyze(stripFrontmatter(string(data))), nil
	}

	start := time.Now()
	raw, err := e.conv.Convert(ctx, p.PDFPath)
	if err != nil {
		return types.ExtractedText{}, err
	}
	text := Analyze(raw)
	log.WithFields(logrus.Fields{
		"words":   text.WordCount,
		"pages":   text.PageCount,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("converted")

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err == nil {
		if werr := os.WriteFile(cachePath, []byte(addFrontmatter(p, raw)), 0o644); werr != nil {
			log.WithError(werr).Warn("caching text failed")
		}
	}
	return text, nil
}

// addFrontmatter prepends YAML frontmatter to the converted text.
func addFrontmatter(paper types.Paper, body string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "paper_id: %q\n", paper.ID)
	fmt.Fprintf(&b, "source_pdf: %q\n", paper.PDFPath)
	fmt.Fprintf(&b, "converted_at: %q\n", ts)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}

func stripFrontmatter(s string) string {
	if !strings.HasPrefix(s, "---\n") {
		return s
	}
	end := strings.Index(s[4:], "\n---\n")
	if end < 0 {
		return s
	}
	return strings.TrimPrefix(s[4+end+5:], "\n")
}
