package document

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sunshineplan/imgconv"
)

// DefaultScale is the render scale used for OCR input.
const DefaultScale = 2.0

// Renderer opens PDF bytes as a renderable document.
type Renderer interface {
	Open(data []byte) (Document, error)
}

// Document is an opened PDF.
type Document interface {
	PageCount() int
	RenderPage(index int, scale float64) (image.Image, error)
}

// Rasterizer turns the first page of a PDF into a PNG suitable for OCR.
type Rasterizer struct {
	renderer Renderer
	scale    float64
}

// NewRasterizer returns a Rasterizer backed by pdfcpu and imgconv.
func NewRasterizer(scale float64) *Rasterizer {
	return NewRasterizerWith(imgconvRenderer{}, scale)
}

// NewRasterizerWith returns a Rasterizer using r.
func NewRasterizerWith(r Renderer, scale float64) *Rasterizer {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Rasterizer{renderer: r, scale: scale}
}

// Rasterize renders page index 0 of pdf at the configured scale and returns
// it PNG-encoded. Only the first page is ever rendered.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte) ([]byte, error) {
	if len(pdf) == 0 {
		return nil, ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := r.renderer.Open(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.PageCount() < 1 {
		return nil, ErrNoPages
	}

	img, err := doc.RenderPage(0, r.scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page 1: %w", err)
	}

	var buf bytes.Buffer
	if err := imgconv.Write(&buf, img, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		return nil, fmt.Errorf("failed to encode page 1 as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// imgconvRenderer counts pages with pdfcpu and renders with imgconv, which
// only decodes the first page of a PDF.
type imgconvRenderer struct{}

func (imgconvRenderer) Open(data []byte) (Document, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF structure: %w", err)
	}
	return &imgconvDocument{data: data, pages: n}, nil
}

type imgconvDocument struct {
	data  []byte
	pages int
}

func (d *imgconvDocument) PageCount() int { return d.pages }

func (d *imgconvDocument) RenderPage(index int, scale float64) (img image.Image, err error) {
	if index != 0 {
		return nil, fmt.Errorf("page %d: only the first page can be rendered", index+1)
	}
	// The PDF decoder underneath imgconv panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("panic while rendering PDF: %v", r)
		}
	}()

	img, err = imgconv.Decode(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PDF page: %w", err)
	}
	return scaleImage(img, scale), nil
}

func scaleImage(img image.Image, scale float64) image.Image {
	if scale == 1 {
		return img
	}
	b := img.Bounds()
	return imgconv.Resize(img, &imgconv.ResizeOption{
		Width:  int(float64(b.Dx()) * scale),
		Height: int(float64(b.Dy()) * scale),
	})
}
