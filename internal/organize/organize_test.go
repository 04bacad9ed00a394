package organize

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/extract"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
)

func ok(page int, actividad string) PageResult {
	return PageResult{PageIndex: page, Record: &llm.AnalysisRecord{Actividad: actividad, Progresivas: "0+000", Ubicacion: "x", Etapa: "antes"}}
}

func failed(page int) PageResult {
	return PageResult{PageIndex: page, Failure: common.AnalysisFailure(page, os.ErrDeadlineExceeded)}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "MR101-LIMPIEZA DE CALZADA", NormalizeName("  mr101-Limpieza   de\tcalzada "))
}

func TestGroupFirstAppearanceOrder(t *testing.T) {
	results := []PageResult{
		ok(7, "MR201-Desbroce"),
		ok(1, "MR101-Limpieza de Calzada"),
		failed(3),
		ok(5, "mr101-limpieza  de calzada"),
		ok(9, "Trabajo sin codigo"),
	}
	acts := Group(results)
	require.Len(t, acts, 3)

	assert.Equal(t, "MR101-Limpieza de Calzada", acts[0].Name)
	assert.Equal(t, []int{1, 5}, acts[0].Pages)
	assert.Equal(t, "MR101", acts[0].Code)
	assert.True(t, acts[0].Recognized)
	assert.Len(t, acts[0].Records, 2)

	assert.Equal(t, []int{7}, acts[1].Pages)
	assert.Equal(t, []int{9}, acts[2].Pages)
	assert.False(t, acts[2].Recognized)

	for _, a := range acts {
		assert.NotContains(t, a.Pages, 3)
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "mr101_limpieza_de_calzada", Slug("MR101-Limpieza de Calzada"))
	assert.Equal(t, "senalizacion", Slug("Señalización"))
	assert.Equal(t, "actividad", Slug("***"))
}

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("out", "final.pdf")
	assert.Equal(t, filepath.Join("out", "pages", "page_004", "before.png"), l.ImagePath(4, constants.Before))
	assert.Equal(t, filepath.Join("out", "activities", "02_mr101_limpieza.pdf"), l.ActivityPath(2, "MR101 Limpieza"))
	assert.Equal(t, filepath.Join("out", "unified", "final.pdf"), l.UnifiedPath())
}

func TestPrepareClean(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, "u.pdf")
	require.NoError(t, WriteFileAtomic(l.UnifiedPath(), []byte("old")))
	require.NoError(t, WriteFileAtomic(l.SummaryPath(), []byte("{}")))
	keep := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	require.NoError(t, l.Prepare(true))
	assert.NoFileExists(t, l.UnifiedPath())
	assert.NoFileExists(t, l.SummaryPath())
	assert.FileExists(t, keep)
}

func TestWritePageAndBundle(t *testing.T) {
	l := NewLayout(t.TempDir(), "u.pdf")
	panel := &extract.Panel{PageIndex: 2, Images: map[constants.Position]extract.PanelImage{}}
	for _, pos := range constants.Positions {
		panel.Images[pos] = extract.PanelImage{Position: pos, PNG: []byte("png-" + string(pos))}
	}
	res := ok(2, "MR101-Limpieza de Calzada")
	res.Panel = panel
	res.Text = &extract.TextBlock{PageIndex: 2, Lines: []extract.TextLine{{Text: "Titulo", Heading: true}, {Text: "cuerpo", Indent: 1}}}

	entry, err := WritePage(l, res)
	require.NoError(t, err)
	assert.Equal(t, constants.PageStatusAnalyzed, entry.Status)
	assert.Len(t, entry.Images, 4)

	b, err := os.ReadFile(l.AnalysisPath(2))
	require.NoError(t, err)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.Len(t, fields, 5)

	text, err := os.ReadFile(l.TextPath(2))
	require.NoError(t, err)
	assert.Equal(t, "# Texto de la Página 2\n\n## Titulo\n  cuerpo\n", string(text))

	bad := failed(4)
	bad.RawResponse = []byte(`{"actividad":`)
	badEntry, err := WritePage(l, bad)
	require.NoError(t, err)
	assert.Equal(t, constants.PageStatusFailed, badEntry.Status)
	require.NotNil(t, badEntry.Failure)
	assert.Equal(t, common.KindAnalysis, badEntry.Failure.Kind)
	assert.Equal(t, `{"actividad":`, badEntry.Failure.RawResponse)
	assert.NoFileExists(t, l.AnalysisPath(4))

	bundle := NewBundle(l)
	bundle.Put(badEntry)
	bundle.Put(entry)
	bundle.MarkFailed(6, common.CanceledError(6, nil))
	entries := bundle.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []int{2, 4, 6}, []int{entries[0].Page, entries[1].Page, entries[2].Page})
	assert.Equal(t, 2, bundle.Failed())

	sum := Summarize(bundle, Group([]PageResult{res, bad}))
	assert.Equal(t, 1, sum.PagesProcessed)
	assert.Equal(t, 2, sum.PagesFailed)
	require.Len(t, sum.Activities, 1)
	require.NoError(t, WriteSummary(l.SummaryPath(), sum))
	assert.FileExists(t, l.SummaryPath())
}
