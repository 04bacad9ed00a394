package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"golang.org/x/image/tiff"
)

// ImageCandidate is one placed raster image on a page.
type ImageCandidate struct {
	Page        int
	Name        string // XObject resource name
	Box         Rect
	Size        int64 // encoded stream length in bytes
	PixelWidth  int
	PixelHeight int
	Filter      string
}

// Images enumerates image XObjects drawn on the page, in content-stream order.
func (d *Document) Images(ctx context.Context, page Page) ([]ImageCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []ImageCandidate
	err := safely(func() error {
		resources := page.raw.Resources()
		contents := page.raw.V.Key("Contents")
		if contents.IsNull() {
			return nil
		}
		walkPlacements(contents, resources, identity, 0, func(p placement) {
			minX, minY, maxX, maxY := p.ctm.unitBounds()
			out = append(out, ImageCandidate{
				Page: page.Index,
				Name: p.name,
				Box: Rect{
					X: minX - page.originX,
					Y: page.originY + page.Height - maxY,
					W: maxX - minX,
					H: maxY - minY,
				},
				Size:        p.xobj.Key("Length").Int64(),
				PixelWidth:  int(p.xobj.Key("Width").Int64()),
				PixelHeight: int(p.xobj.Key("Height").Int64()),
				Filter:      filterName(p.xobj.Key("Filter")),
			})
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("page %d images: %w", page.Index, err)
	}
	return out, nil
}

func filterName(v pdf.Value) string {
	switch v.Kind() {
	case pdf.Name:
		return v.Name()
	case pdf.Array:
		if v.Len() > 0 {
			return v.Index(v.Len() - 1).Name()
		}
	}
	return ""
}

// streamImage is an image stream as exported by pdfcpu.
type streamImage struct {
	Name     string
	FileType string
	ObjNr    int
	Width    int
	Height   int
	Data     []byte
}

// pageStreams returns the exported image streams for a page, cached. Caller holds mu.
func (d *Document) pageStreams(pageIndex int) ([]streamImage, error) {
	if s, ok := d.streams[pageIndex]; ok {
		return s, nil
	}
	cpu, err := d.pdfcpuContext()
	if err != nil {
		return nil, err
	}
	imgs, err := pdfcpu.ExtractPageImages(cpu, pageIndex, false)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu extract page %d: %w", pageIndex, err)
	}
	out := make([]streamImage, 0, len(imgs))
	for objNr, img := range imgs {
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return nil, fmt.Errorf("read image obj %d: %w", objNr, err)
		}
		out = append(out, streamImage{
			Name:     img.Name,
			FileType: img.FileType,
			ObjNr:    objNr,
			Width:    img.Width,
			Height:   img.Height,
			Data:     data,
		})
	}
	d.streams[pageIndex] = out
	return out, nil
}

// DecodeImage returns the candidate's pixels at native resolution. The encoded stream is
// exported with pdfcpu and decoded; when the stream cannot be decoded in-process the page
// is rasterised and the candidate's box cropped and scaled back to its native size.
func (d *Document) DecodeImage(ctx context.Context, c ImageCandidate, renderDPI float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	streams, err := d.pageStreams(c.Page)
	d.mu.Unlock()

	if err == nil {
		if s, ok := matchStream(streams, c); ok {
			img, decErr := decodeStream(s)
			if decErr == nil {
				return img, nil
			}
			d.logger.Warn("pdf.image.decode_fallback",
				"page", c.Page, "name", c.Name, "file_type", s.FileType, "error", decErr)
		} else {
			d.logger.Warn("pdf.image.stream_not_found", "page", c.Page, "name", c.Name)
		}
	}

	return d.renderCandidate(ctx, c, renderDPI)
}

// matchStream pairs a placement with its exported stream, by resource name first and
// by pixel dimensions second.
func matchStream(streams []streamImage, c ImageCandidate) (streamImage, bool) {
	for _, s := range streams {
		if s.Name == c.Name {
			return s, true
		}
	}
	var hit streamImage
	matches := 0
	for _, s := range streams {
		if s.Width == c.PixelWidth && s.Height == c.PixelHeight {
			hit = s
			matches++
		}
	}
	return hit, matches == 1
}

func decodeStream(s streamImage) (image.Image, error) {
	r := bytes.NewReader(s.Data)
	switch s.FileType {
	case "jpg", "jpeg":
		return jpeg.Decode(r)
	case "png":
		return png.Decode(r)
	case "tif", "tiff":
		return tiff.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported image stream type %q", s.FileType)
	}
}

func (d *Document) renderCandidate(ctx context.Context, c ImageCandidate, dpi float64) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raster == nil {
		r, err := NewRasterizer(d.data)
		if err != nil {
			return nil, fmt.Errorf("rasterise page %d: %w", c.Page, err)
		}
		d.raster = r
	}
	return d.raster.Crop(ctx, c.Page, c.Box, dpi, c.PixelWidth, c.PixelHeight)
}
