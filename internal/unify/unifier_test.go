package unify

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/testutil"
)

func doc(t *testing.T, labels ...string) []byte {
	t.Helper()
	pages := make([]testutil.Page, len(labels))
	for i, l := range labels {
		pages[i] = testutil.TextPage(l)
	}
	return testutil.BuildPDF(t, pages...)
}

// firstLines reads the first text line of every page.
func firstLines(t *testing.T, b []byte) []string {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	var out []string
	for i := 1; i <= r.NumPage(); i++ {
		var sb bytes.Buffer
		for _, tx := range r.Page(i).Content().Text {
			sb.WriteString(tx.S)
		}
		out = append(out, sb.String())
	}
	return out
}

func TestUnifyKeepsOrderAndPageCount(t *testing.T) {
	docs := []ActivityDocument{
		{Activity: "B", Bytes: doc(t, "B1", "B2")},
		{Activity: "A", Bytes: doc(t, "A1")},
		{Activity: "C", Bytes: doc(t, "C1", "C2", "C3")},
	}
	res, err := NewUnifier(nil).Unify(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Pages)
	assert.Equal(t, []string{"B1", "B2", "A1", "C1", "C2", "C3"}, firstLines(t, res.Bytes))
}

func TestUnifySingleDocument(t *testing.T) {
	in := doc(t, "solo")
	res, err := NewUnifier(nil).Unify(context.Background(), []ActivityDocument{{Activity: "A", Bytes: in}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, in, res.Bytes)
}

func TestUnifyCorruptInputIsAllOrNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "unified.pdf")
	docs := []ActivityDocument{
		{Activity: "A", Bytes: doc(t, "A1")},
		{Activity: "Rota", Bytes: []byte("%PDF-1.4\nbasura")},
	}
	_, err := NewUnifier(nil).UnifyToFile(context.Background(), docs, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnification))
	se, ok := common.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, "Rota", se.Activity)
	assert.NoFileExists(t, out)
}

func TestUnifyNothing(t *testing.T) {
	_, err := NewUnifier(nil).Unify(context.Background(), nil)
	assert.True(t, errors.Is(err, common.ErrUnification))
}

func TestUnifyToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "unified", "final.pdf")
	res, err := NewUnifier(nil).UnifyToFile(context.Background(),
		[]ActivityDocument{{Activity: "A", Bytes: doc(t, "A1")}, {Activity: "B", Bytes: doc(t, "B1")}}, out)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.FileExists(t, out)
}
