package extract

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

const (
	pageW = 595.0
	pageH = 842.0
	tol   = 0.02
)

func cand(name string, cx, cy float64) pdfdoc.ImageCandidate {
	return pdfdoc.ImageCandidate{Page: 2, Name: name, Box: pdfdoc.Rect{X: cx - 100, Y: cy - 100, W: 200, H: 200}, Size: 50000}
}

func names(m map[constants.Position]pdfdoc.ImageCandidate) map[constants.Position]string {
	out := map[constants.Position]string{}
	for k, v := range m {
		out[k] = v.Name
	}
	return out
}

func TestAssignQuadrantsByMidpoints(t *testing.T) {
	cands := []pdfdoc.ImageCandidate{
		cand("br", 450, 620),
		cand("tl", 150, 220),
		cand("bl", 150, 620),
		cand("tr", 450, 220),
	}
	want := map[constants.Position]string{
		constants.Before:  "tl",
		constants.During1: "tr",
		constants.During2: "bl",
		constants.After:   "br",
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(cands), func(a, b int) { cands[a], cands[b] = cands[b], cands[a] })
		got, err := AssignQuadrants(pageW, pageH, cands, tol)
		require.NoError(t, err)
		assert.Equal(t, want, names(got))
	}
}

func TestAssignQuadrantsFallsBackToRank(t *testing.T) {
	// Both rows sit above the horizontal midpoint.
	cands := []pdfdoc.ImageCandidate{
		cand("tl", 150, 150),
		cand("tr", 450, 150),
		cand("bl", 150, 380),
		cand("br", 450, 380),
	}
	got, err := AssignQuadrants(pageW, pageH, cands, tol)
	require.NoError(t, err)
	assert.Equal(t, "tl", got[constants.Before].Name)
	assert.Equal(t, "tr", got[constants.During1].Name)
	assert.Equal(t, "bl", got[constants.During2].Name)
	assert.Equal(t, "br", got[constants.After].Name)
}

func TestAssignQuadrantsAmbiguous(t *testing.T) {
	cands := []pdfdoc.ImageCandidate{
		cand("a", 150, 220),
		cand("b", 450, 220),
		cand("c", 297, 620),
		cand("d", 299, 640),
	}
	_, err := AssignQuadrants(pageW, pageH, cands, tol)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrQuadrantAmbiguity))

	se, ok := common.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, 2, se.PageIndex)
	assert.Equal(t, constants.StageImages, se.Stage)
}

func TestAssignQuadrantsNeedsFour(t *testing.T) {
	_, err := AssignQuadrants(pageW, pageH, []pdfdoc.ImageCandidate{cand("a", 150, 220)}, tol)
	assert.True(t, errors.Is(err, common.ErrQuadrantAmbiguity))
}
