// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/paper-podcast/internal/container"
)

const defaultMarkitdownImage = "markitdown:latest"

// MarkitdownConverter converts PDFs by piping them through the markitdown
// container image.
type MarkitdownConverter struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdownConverter verifies that image exists locally in rt.
func NewMarkitdownConverter(ctx context.Context, rt container.Runtime, image string) (*MarkitdownConverter, error) {
	if image == "" {
		image = defaultMarkitdownImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{runtime: rt, image: image}, nil
}

func (m *MarkitdownConverter) Name() string { return "markitdown" }

// Convert pipes the PDF at pdfPath through the container and returns the
// resulting Markdown.
func (m *MarkitdownConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, m.image, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", pdfPath, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("markitdown produced empty output for %s", pdfPath)
	}
	return out.String(), nil
}
