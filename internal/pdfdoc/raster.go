package pdfdoc

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"
)

// Rasterizer renders pages through MuPDF.
type Rasterizer struct {
	doc *fitz.Document
}

func NewRasterizer(data []byte) (*Rasterizer, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open document for rendering: %w", err)
	}
	return &Rasterizer{doc: doc}, nil
}

// Crop renders page (1-based) at dpi and returns box scaled to width x height pixels.
// A zero width or height keeps the rendered size.
func (r *Rasterizer) Crop(ctx context.Context, page int, box Rect, dpi float64, width, height int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = 150
	}
	rendered, err := r.doc.ImageDPI(page-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}

	scale := dpi / 72
	b := rendered.Bounds()
	crop := image.Rect(
		b.Min.X+int(box.X*scale),
		b.Min.Y+int(box.Y*scale),
		b.Min.X+int((box.X+box.W)*scale+0.5),
		b.Min.Y+int((box.Y+box.H)*scale+0.5),
	).Intersect(b)
	if crop.Empty() {
		return nil, fmt.Errorf("image box outside rendered page %d", page)
	}
	sub := rendered.SubImage(crop)

	if width <= 0 || height <= 0 {
		return sub, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), sub, crop, draw.Over, nil)
	return dst, nil
}

func (r *Rasterizer) Close() error {
	return r.doc.Close()
}
