package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	dcconfig "github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
	"github.com/JaimeStill/document-context/pkg/image"
)

// PDF converts PDF documents by counting pages with pdfcpu and rendering
// each page to a PNG data URI for vision-based extraction. PDFs carry no
// reliably extractable text layer here, so Text stays empty and the
// oracle works from page images.
type PDF struct{}

// NewPDF creates the PDF converter.
func NewPDF() *PDF {
	return &PDF{}
}

// Supports reports whether path has a .pdf extension.
func (p *PDF) Supports(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

// Convert renders every page concurrently and returns data URIs in page
// order.
func (p *PDF) Convert(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("count pages %s: %w", path, err)
	}

	images, err := renderPages(ctx, path, count)
	if err != nil {
		return nil, err
	}

	return &Result{
		PageCount:  count,
		PageImages: images,
	}, nil
}

func renderPages(ctx context.Context, path string, count int) ([]string, error) {
	pdfDoc, err := document.OpenPDF(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer pdfDoc.Close()

	renderer, err := image.NewImageMagickRenderer(dcconfig.DefaultImageConfig())
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	allPages, err := pdfDoc.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("extract pages %s: %w", path, err)
	}

	images := make([]string, len(allPages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(runtime.NumCPU(), count), 1))

	for i, page := range allPages {
		pageNum := i + 1
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			data, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", pageNum, err)
			}

			dataURI, err := encoding.EncodeImageDataURI(data, document.PNG)
			if err != nil {
				return fmt.Errorf("encode page %d: %w", pageNum, err)
			}

			images[i] = dataURI
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return images, nil
}
