package panelpdf

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/extract"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
	"github.com/joseph-ayodele/photo-panels/internal/testutil"
)

func panelPage(page int, desc string) PanelPage {
	p := extract.Panel{PageIndex: page, Images: map[constants.Position]extract.PanelImage{}}
	for i, pos := range constants.Positions {
		w, h := 80, 60
		if i%2 == 1 {
			w, h = 60, 90
		}
		p.Images[pos] = extract.PanelImage{Position: pos, Width: w, Height: h, PNG: noise(w, h, int64(page*10+i))}
	}
	return PanelPage{
		PageIndex: page,
		Panel:     p,
		Record: llm.AnalysisRecord{
			Actividad:   "MR101-Limpieza de Calzada",
			Progresivas: "0+100 - 0+250",
			Ubicacion:   "Sector Ñuñoa",
			Etapa:       "después",
			Descripcion: desc,
		},
	}
}

func noise(w, h int, seed int64) []byte {
	side := w
	if h > side {
		side = h
	}
	// NoisePNG is square; the recorded Width/Height only drive the fit.
	return testutil.NoisePNG(side, seed)
}

func pageCount(t *testing.T, b []byte) int {
	t.Helper()
	n, err := api.PageCount(bytes.NewReader(b), pdfdoc.PDFCPUConfig())
	require.NoError(t, err)
	return n
}

func newTestGenerator() *Generator {
	g := NewGenerator(common.DefaultConfig().Layout, nil)
	g.now = func() time.Time { return time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerateOnePagePerSourcePage(t *testing.T) {
	doc, err := newTestGenerator().Generate(context.Background(), "MR101-Limpieza de Calzada",
		[]PanelPage{panelPage(1, "Limpieza manual de calzada."), panelPage(3, "")})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, 2, pageCount(t, doc.Bytes))
	assert.Equal(t, "MR101-Limpieza de Calzada", doc.Activity)
}

func TestGenerateLongDescriptionPaginates(t *testing.T) {
	long := strings.Repeat("Se realizó la limpieza de cunetas y el retiro de material excedente. ", 80)
	doc, err := newTestGenerator().Generate(context.Background(), "MR101", []PanelPage{panelPage(2, long)})
	require.NoError(t, err)
	assert.Greater(t, doc.Pages, 1)
	assert.Equal(t, doc.Pages, pageCount(t, doc.Bytes))
}

func TestGenerateRejectsInvalidActivities(t *testing.T) {
	g := newTestGenerator()

	_, err := g.Generate(context.Background(), "vacía", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrGeneration))
	se, ok := common.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, "vacía", se.Activity)

	p := panelPage(4, "")
	delete(p.Panel.Images, constants.After)
	_, err = g.Generate(context.Background(), "MR101", []PanelPage{p})
	assert.True(t, errors.Is(err, common.ErrGeneration))

	bad := panelPage(5, "")
	img := bad.Panel.Images[constants.Before]
	img.PNG = []byte("not a png")
	bad.Panel.Images[constants.Before] = img
	_, err = g.Generate(context.Background(), "MR101", []PanelPage{bad})
	assert.True(t, errors.Is(err, common.ErrGeneration))
}

func TestGenerateFailsWhenGridDoesNotFit(t *testing.T) {
	cfg := common.DefaultConfig().Layout
	cfg.DescriptionBlockHeight = 2000
	g := NewGenerator(cfg, nil)

	_, err := g.Generate(context.Background(), "MR101", []PanelPage{panelPage(3, "texto")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrGeneration))
	assert.Contains(t, err.Error(), "page 3")
	assert.Contains(t, err.Error(), "need 120pt")
	assert.NotContains(t, err.Error(), "%!")
}

func TestGenerateReportsUnencodableCharacters(t *testing.T) {
	var logs bytes.Buffer
	g := NewGenerator(common.DefaultConfig().Layout, slog.New(slog.NewTextHandler(&logs, nil)))

	p := panelPage(1, "Espesor ≥ 5 cm y ≤ 8 cm, tolerancia ± 1 cm → conforme.")
	doc, err := g.Generate(context.Background(), "MR101", []PanelPage{p})
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Replaced)
	assert.Contains(t, logs.String(), "panelpdf.text.lossy")

	clean, err := g.Generate(context.Background(), "MR101", []PanelPage{panelPage(2, "Cuneta revestida, año 2025.")})
	require.NoError(t, err)
	assert.Zero(t, clean.Replaced)
}

func TestMesEjecutado(t *testing.T) {
	assert.Equal(t, "Marzo 2025", newTestGenerator().MesEjecutado())

	cfg := common.DefaultConfig().Layout
	cfg.MesEjecutado = "Enero 2024"
	assert.Equal(t, "Enero 2024", NewGenerator(cfg, nil).MesEjecutado())
}

func TestFit(t *testing.T) {
	w, h := Fit(400, 200, 100, 100)
	assert.InDelta(t, 100, w, 1e-9)
	assert.InDelta(t, 50, h, 1e-9)

	w, h = Fit(100, 300, 200, 150)
	assert.InDelta(t, 50, w, 1e-9)
	assert.InDelta(t, 150, h, 1e-9)

	w, h = Fit(10, 10, 300, 200)
	assert.InDelta(t, 200, w, 1e-9)
	assert.InDelta(t, 200, h, 1e-9)

	w, h = Fit(0, 10, 100, 100)
	assert.Zero(t, w)
	assert.Zero(t, h)
}
