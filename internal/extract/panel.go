package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

// PanelExtractor pulls the four photographs of a panel page.
type PanelExtractor struct {
	src    ImageSource
	cfg    common.ExtractionConfig
	logger *slog.Logger
}

func NewPanelExtractor(src ImageSource, cfg common.ExtractionConfig, logger *slog.Logger) *PanelExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelExtractor{src: src, cfg: cfg, logger: logger}
}

// Extract assigns positions to the page's retained candidates and re-encodes each image
// losslessly. Ambiguous geometry is a QuadrantAmbiguityError; undecodable images are an
// ExtractionError.
func (e *PanelExtractor) Extract(ctx context.Context, page pdfdoc.Page, cands []pdfdoc.ImageCandidate) (Panel, error) {
	start := time.Now()

	assigned, err := AssignQuadrants(page.Width, page.Height, cands, e.cfg.QuadrantTolerance)
	if err != nil {
		e.logger.Warn("extract.panel.ambiguous", "page", page.Index, "error", err)
		return Panel{}, err
	}

	images := make([]PanelImage, len(constants.Positions))
	g, gctx := errgroup.WithContext(ctx)
	for i, pos := range constants.Positions {
		cand := assigned[pos]
		g.Go(func() error {
			img, err := e.src.DecodeImage(gctx, cand, e.cfg.RenderDPI)
			if err != nil {
				return fmt.Errorf("%s (%s): decode: %w", pos, cand.Name, err)
			}
			img = eightBit(img)
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return fmt.Errorf("%s (%s): encode png: %w", pos, cand.Name, err)
			}
			b := img.Bounds()
			images[i] = PanelImage{
				Position: pos,
				Box:      cand.Box,
				Width:    b.Dx(),
				Height:   b.Dy(),
				PNG:      buf.Bytes(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Panel{}, ctxErr
		}
		e.logger.Error("extract.panel.failed", "page", page.Index, "error", err)
		return Panel{}, common.ExtractionError(constants.StageImages, page.Index, err)
	}

	panel := Panel{PageIndex: page.Index, Images: make(map[constants.Position]PanelImage, len(images))}
	for _, img := range images {
		panel.Images[img.Position] = img
	}
	e.logger.Info("extract.panel.ok",
		"page", page.Index,
		"images", len(panel.Images),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return panel, nil
}

// eightBit converts 16-bit images so every consumer of the PNG can read it.
func eightBit(img image.Image) image.Image {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		b := img.Bounds()
		dst := image.NewNRGBA(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst
	}
	return img
}
