package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/classify"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
	"github.com/joseph-ayodele/photo-panels/internal/testutil"
)

func TestPanelExtractIsRepeatable(t *testing.T) {
	page := testutil.PanelPage(7, "Actividad MR101")
	// a fifth, smaller photograph that still clears the size threshold
	page.Images = append(page.Images, testutil.Image{X: 250, Y: 740, W: 60, H: 60, Side: 70, Seed: 99})

	doc, err := pdfdoc.OpenBytes(testutil.BuildPDF(t, page), nil)
	require.NoError(t, err)
	defer doc.Close()
	ctx := context.Background()

	p, err := doc.Page(1)
	require.NoError(t, err)
	cands, err := doc.Images(ctx, p)
	require.NoError(t, err)
	require.Len(t, cands, 5)

	cfg := common.DefaultConfig()
	label := classify.NewClassifier(cfg.Classifier, nil).ClassifyCandidates(cands)
	require.Equal(t, constants.LabelImagePanel, label.Label)
	require.Equal(t, 5, label.Qualifying)

	extractor := NewPanelExtractor(doc, cfg.Extraction, nil)
	first, err := extractor.Extract(ctx, p, label.Candidates)
	require.NoError(t, err)

	reversed := make([]pdfdoc.ImageCandidate, len(label.Candidates))
	for i, c := range label.Candidates {
		reversed[len(reversed)-1-i] = c
	}
	second, err := extractor.Extract(ctx, p, reversed)
	require.NoError(t, err)

	require.Len(t, first.Images, 4)
	for _, pos := range constants.Positions {
		a, b := first.Images[pos], second.Images[pos]
		assert.Equal(t, 120, a.Width, pos)
		assert.Equal(t, 120, a.Height, pos)
		assert.Equal(t, a.Box, b.Box, pos)
		assert.Equal(t, a.PNG, b.PNG, "%s differs between runs", pos)
	}
	assert.InDelta(t, 60, first.Images[constants.Before].Box.X, 0.5)
	assert.InDelta(t, 315, first.Images[constants.After].Box.X, 0.5)
	assert.InDelta(t, 500, first.Images[constants.After].Box.Y, 0.5)
}
