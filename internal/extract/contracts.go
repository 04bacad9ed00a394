// Package extract turns a classified panel page into in-memory artifacts:
// four positioned photographs and a structured text block.
package extract

import (
	"context"
	"image"
	"strings"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

// ImageSource decodes placed images (Stage 1a).
type ImageSource interface {
	DecodeImage(ctx context.Context, c pdfdoc.ImageCandidate, renderDPI float64) (image.Image, error)
}

// TextSource yields positioned text runs (Stage 1b).
type TextSource interface {
	Text(ctx context.Context, page pdfdoc.Page) ([]pdfdoc.TextRun, error)
}

// PanelImage is one photograph, PNG-encoded at its native pixel size.
type PanelImage struct {
	Position constants.Position
	Box      pdfdoc.Rect
	Width    int
	Height   int
	PNG      []byte
}

// Panel holds the four photographs of a page keyed by position.
type Panel struct {
	PageIndex int
	Images    map[constants.Position]PanelImage
}

// Ordered returns the images in before, during1, during2, after order.
func (p Panel) Ordered() []PanelImage {
	out := make([]PanelImage, 0, len(constants.Positions))
	for _, pos := range constants.Positions {
		if img, ok := p.Images[pos]; ok {
			out = append(out, img)
		}
	}
	return out
}

// TextLine is one line of page text. Indent counts indentation steps relative to the
// leftmost line on the page.
type TextLine struct {
	Text    string
	Indent  int
	Heading bool
}

// TextBlock is the page text in reading order. Empty lines mark paragraph breaks.
type TextBlock struct {
	PageIndex int
	Lines     []TextLine
}

// String renders plain text with two spaces per indent step.
func (b TextBlock) String() string {
	var sb strings.Builder
	for i, l := range b.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if l.Text == "" {
			continue
		}
		sb.WriteString(strings.Repeat("  ", l.Indent))
		sb.WriteString(l.Text)
	}
	return sb.String()
}

// Empty reports whether the block carries no text.
func (b TextBlock) Empty() bool {
	for _, l := range b.Lines {
		if strings.TrimSpace(l.Text) != "" {
			return false
		}
	}
	return true
}
