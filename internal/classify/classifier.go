// Package classify labels source pages as photo panels or text pages.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

// PanelSize is the number of photographs on a panel page.
const PanelSize = 4

// Source is what the classifier needs from a document.
type Source interface {
	NumPages() int
	Page(i int) (pdfdoc.Page, error)
	Images(ctx context.Context, page pdfdoc.Page) ([]pdfdoc.ImageCandidate, error)
}

// PageLabel is the classification of one page. Candidates holds the retained images
// (exactly PanelSize, largest first) for panel pages and is empty otherwise.
type PageLabel struct {
	Page       pdfdoc.Page
	Label      constants.PageLabel
	Candidates []pdfdoc.ImageCandidate
	Qualifying int // images at or above the size threshold
	Total      int // placed images
}

// Counts tallies labels.
func Counts(labels []PageLabel) map[constants.PageLabel]int {
	out := map[constants.PageLabel]int{constants.LabelImagePanel: 0, constants.LabelTextOnly: 0}
	for _, l := range labels {
		out[l.Label]++
	}
	return out
}

// Panels filters panel pages, keeping page order.
func Panels(labels []PageLabel) []PageLabel {
	var out []PageLabel
	for _, l := range labels {
		if l.Label == constants.LabelImagePanel {
			out = append(out, l)
		}
	}
	return out
}

type Classifier struct {
	cfg    common.ClassifierConfig
	logger *slog.Logger
}

func NewClassifier(cfg common.ClassifierConfig, logger *slog.Logger) *Classifier {
	if cfg.MinImagesPerPage < PanelSize {
		cfg.MinImagesPerPage = PanelSize
	}
	if cfg.MaxImagesPerPage < cfg.MinImagesPerPage {
		cfg.MaxImagesPerPage = cfg.MinImagesPerPage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{cfg: cfg, logger: logger}
}

// Classify labels every page in order. A document without any panel page is a ClassificationError;
// a page that cannot be read is an InputError.
func (c *Classifier) Classify(ctx context.Context, src Source) ([]PageLabel, error) {
	start := time.Now()
	n := src.NumPages()
	labels := make([]PageLabel, 0, n)

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := src.Page(i)
		if err != nil {
			return nil, common.InputError(fmt.Errorf("page %d: %w", i, err))
		}
		cands, err := src.Images(ctx, page)
		if err != nil {
			c.logger.Warn("classify.page.images_unreadable", "page", i, "error", err)
			cands = nil
		}
		label := c.ClassifyCandidates(cands)
		label.Page = page
		labels = append(labels, label)

		c.logger.Debug("classify.page",
			"page", i,
			"label", label.Label,
			"images", label.Total,
			"qualifying", label.Qualifying,
		)
	}

	counts := Counts(labels)
	c.logger.Info("classify.ok",
		"pages", n,
		"image_panel", counts[constants.LabelImagePanel],
		"text_only", counts[constants.LabelTextOnly],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if counts[constants.LabelImagePanel] == 0 {
		return labels, common.ClassificationError(fmt.Errorf("no image panel pages among %d pages", n))
	}
	return labels, nil
}

// ClassifyCandidates applies the size and count thresholds to one page's images.
// The result does not depend on the order of cands.
func (c *Classifier) ClassifyCandidates(cands []pdfdoc.ImageCandidate) PageLabel {
	retained := make([]pdfdoc.ImageCandidate, 0, len(cands))
	for _, cand := range cands {
		if cand.Size >= c.cfg.MinImageSize {
			retained = append(retained, cand)
		}
	}
	SortCandidates(retained)

	label := PageLabel{Label: constants.LabelTextOnly, Qualifying: len(retained), Total: len(cands)}
	if len(retained) < c.cfg.MinImagesPerPage || len(retained) > c.cfg.MaxImagesPerPage {
		return label
	}
	label.Label = constants.LabelImagePanel
	label.Candidates = retained[:PanelSize]
	return label
}

// SortCandidates orders by encoded size descending, then top, then left, then name.
func SortCandidates(cands []pdfdoc.ImageCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		if a.Box.Y != b.Box.Y {
			return a.Box.Y < b.Box.Y
		}
		if a.Box.X != b.Box.X {
			return a.Box.X < b.Box.X
		}
		return a.Name < b.Name
	})
}
