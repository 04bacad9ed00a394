// Package testutil builds small synthetic source documents for package tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
)

// A4 portrait in points.
const (
	PageWidth  = 595.28
	PageHeight = 841.89
)

// Image is a noise photograph placed at X, Y (top-left origin) with size W x H points.
// Side is the pixel edge; noise keeps the encoded stream close to Side*Side*3 bytes.
type Image struct {
	X, Y, W, H float64
	Side       int
	Seed       int64
}

type Line struct {
	X, Y, Size float64
	Text       string
}

type Page struct {
	Lines  []Line
	Images []Image
}

// NoisePNG returns an RGB PNG of random pixels, which does not compress.
func NoisePNG(side int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// TextLines lays lines out top-down from y=90 in 11pt.
func TextLines(lines ...string) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{X: 60, Y: 90 + float64(i)*16, Size: 11, Text: l}
	}
	return out
}

// PanelPage is a page with text on top and four 120px photographs in a 2x2 grid.
func PanelPage(seed int64, lines ...string) Page {
	p := Page{Lines: TextLines(lines...)}
	for i, pos := range [][2]float64{{60, 220}, {315, 220}, {60, 500}, {315, 500}} {
		p.Images = append(p.Images, Image{X: pos[0], Y: pos[1], W: 220, H: 220, Side: 120, Seed: seed*10 + int64(i)})
	}
	return p
}

func TextPage(lines ...string) Page {
	return Page{Lines: TextLines(lines...)}
}

// BuildPDF renders pages into a PDF document.
func BuildPDF(t testing.TB, pages ...Page) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	n := 0
	for _, p := range pages {
		pdf.AddPage()
		for _, l := range p.Lines {
			pdf.SetFont("Helvetica", "", l.Size)
			pdf.Text(l.X, l.Y, l.Text)
		}
		for _, img := range p.Images {
			n++
			name := fmt.Sprintf("img%03d", n)
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(NoisePNG(img.Side, img.Seed)))
			pdf.ImageOptions(name, img.X, img.Y, img.W, img.H, false, opts, 0, "")
		}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	return buf.Bytes()
}

// WritePDF builds the document into dir and returns its path.
func WritePDF(t testing.TB, dir, name string, pages ...Page) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildPDF(t, pages...), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}
