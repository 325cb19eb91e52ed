// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// toolRunner runs a host program. *container.Tool satisfies it.
type toolRunner interface {
	Run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error
}

// PdftotextConverter runs poppler's pdftotext. Its output separates pages
// with form feeds, which Analyze counts.
type PdftotextConverter struct {
	tool toolRunner
}

func (p *PdftotextConverter) Name() string { return "pdftotext" }

// Convert returns the UTF-8 text of the PDF at pdfPath.
func (p *PdftotextConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	var out bytes.Buffer
	args := []string{"-enc", "UTF-8", pdfPath, "-"}
	if err := p.tool.Run(ctx, args, nil, &out); err != nil {
		return "", fmt.Errorf("converting %s with pdftotext: %w", pdfPath, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("pdftotext produced empty output for %s", pdfPath)
	}
	return out.String(), nil
}
