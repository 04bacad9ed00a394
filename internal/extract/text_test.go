package extract

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

func sampleRuns() []pdfdoc.TextRun {
	return []pdfdoc.TextRun{
		{X: 60, Y: 30, W: 60, FontSize: 10, S: "ENCABEZADO"},
		{X: 60, Y: 100, W: 70, FontSize: 16, S: "INFORME"},
		{X: 60, Y: 130, W: 45, FontSize: 10, S: "Actividad:"},
		{X: 110, Y: 130.5, W: 30, FontSize: 10, S: "MR101"},
		{X: 84, Y: 144, W: 30, FontSize: 10, S: "detalle"},
		{X: 60, Y: 200, W: 15, FontSize: 10, S: "Fin"},
		{X: 60, Y: 820, W: 40, FontSize: 8, S: "Pagina 1"},
	}
}

func TestBuildTextBlock(t *testing.T) {
	cfg := common.DefaultConfig().Text
	block := BuildTextBlock(3, 842, sampleRuns(), cfg)

	assert.Equal(t, 3, block.PageIndex)
	assert.Equal(t, []TextLine{
		{Text: "INFORME", Heading: true},
		{},
		{Text: "Actividad: MR101"},
		{Text: "detalle", Indent: 2},
		{},
		{Text: "Fin"},
	}, block.Lines)
	assert.Equal(t, "INFORME\n\nActividad: MR101\n    detalle\n\nFin", block.String())
	assert.False(t, block.Empty())
}

func TestBuildTextBlockIgnoresRunOrder(t *testing.T) {
	cfg := common.DefaultConfig().Text
	want := BuildTextBlock(1, 842, sampleRuns(), cfg)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		runs := sampleRuns()
		rng.Shuffle(len(runs), func(a, b int) { runs[a], runs[b] = runs[b], runs[a] })
		assert.Equal(t, want, BuildTextBlock(1, 842, runs, cfg))
	}
}

func TestBuildTextBlockGlyphRuns(t *testing.T) {
	// One run per glyph, as content streams usually yield.
	var runs []pdfdoc.TextRun
	x := 60.0
	for _, r := range "Km 0+100" {
		runs = append(runs, pdfdoc.TextRun{X: x, Y: 300, W: 5, FontSize: 10, S: string(r)})
		x += 5
	}
	block := BuildTextBlock(1, 842, runs, common.DefaultConfig().Text)
	assert.Equal(t, []TextLine{{Text: "Km 0+100"}}, block.Lines)
}

func TestBuildTextBlockOnlyMargins(t *testing.T) {
	runs := []pdfdoc.TextRun{{X: 10, Y: 5, S: "header"}, {X: 10, Y: 835, S: "footer"}}
	block := BuildTextBlock(1, 842, runs, common.DefaultConfig().Text)
	assert.True(t, block.Empty())
	assert.Equal(t, "", block.String())
}
