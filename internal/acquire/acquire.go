// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads paper PDFs and keeps a YAML metadata record next
// to each one.
package acquire

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-podcast/internal/httputil"
	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"
)

var pdfMagic = []byte("%PDF-")

// Fetcher downloads papers into cfg.PapersDir/raw and writes their metadata
// to cfg.PapersDir/metadata.
type Fetcher struct {
	Client *http.Client
	cfg    types.AcquisitionConfig
	log    *logrus.Entry
}

// NewFetcher returns a Fetcher. A nil client gets one built from cfg.
func NewFetcher(client *http.Client, cfg types.AcquisitionConfig) *Fetcher {
	if client == nil {
		client = httputil.NewClient(cfg.HTTPConfig)
	}
	return &Fetcher{Client: client, cfg: cfg, log: logging.New("acquire")}
}

// Fetch downloads the PDF of paper unless it is already on disk, and returns
// the paper with PDFPath and SourceURL filled in. The skipped return value
// reports whether the download was skipped.
func (f *Fetcher) Fetch(ctx context.Context, paper types.Paper) (out types.Paper, skipped bool, err error) {
	idType, normalized := Classify(paper.ID)
	if idType == TypeUnknown {
		return paper, false, fmt.Errorf("no downloadable PDF for identifier %q", paper.ID)
	}

	slug := Slug(idType, normalized)
	pdfPath := filepath.Join(f.cfg.PapersDir, rawDir, slug+".pdf")
	metaPath := filepath.Join(f.cfg.PapersDir, metadataDir, slug+".yaml")
	log := f.log.WithField("paper", paper.ID)

	if _, err := os.Stat(pdfPath); err == nil {
		log.Debug("already downloaded")
		if p, rerr := ReadMetadata(metaPath); rerr == nil {
			return merge(paper, p), true, nil
		}
		paper.PDFPath = pdfPath
		return paper, true, nil
	}

	for _, dir := range []string{filepath.Dir(pdfPath), filepath.Dir(metaPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paper, false, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	pdfURL := PDFURL(idType, normalized)
	log.WithField("url", pdfURL).Info("downloading")
	if err := f.download(ctx, pdfURL, pdfPath); err != nil {
		return paper, false, fmt.Errorf("downloading %s: %w", slug, err)
	}

	paper.SourceURL = pdfURL
	paper.PDFPath = pdfPath
	if err := WriteMetadata(paper, metaPath); err != nil {
		return paper, false, fmt.Errorf("writing metadata for %s: %w", slug, err)
	}
	return paper, false, nil
}

// download fetches url to destPath through a temporary file that is renamed
// only once the whole body is written and looks like a PDF.
func (f *Fetcher) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	body := bufio.NewReader(resp.Body)
	head, _ := body.Peek(len(pdfMagic))
	if !bytes.Equal(head, pdfMagic) {
		return fmt.Errorf("%s did not return a PDF (content type %q)", url, resp.Header.Get("Content-Type"))
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// merge prefers the caller's summary fields and fills the rest from the
// stored record.
func merge(p, stored types.Paper) types.Paper {
	if p.Title == "" {
		p.Title = stored.Title
	}
	if len(p.Authors) == 0 {
		p.Authors = stored.Authors
	}
	if p.Abstract == "" {
		p.Abstract = stored.Abstract
	}
	if p.Date.IsZero() {
		p.Date = stored.Date
	}
	p.SourceURL = stored.SourceURL
	p.PDFPath = stored.PDFPath
	return p
}

// WriteMetadata writes a Paper record to a YAML file.
func WriteMetadata(paper types.Paper, path string) error {
	data, err := yaml.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadMetadata reads a Paper record from a YAML file.
func ReadMetadata(path string) (types.Paper, error) {
	var paper types.Paper
	data, err := os.ReadFile(path)
	if err != nil {
		return paper, err
	}
	if err := yaml.Unmarshal(data, &paper); err != nil {
		return paper, err
	}
	return paper, nil
}
