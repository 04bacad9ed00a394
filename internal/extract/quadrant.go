package extract

import (
	"fmt"
	"math"
	"sort"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

type centroid struct {
	cand   pdfdoc.ImageCandidate
	cx, cy float64
}

// AssignQuadrants maps four candidates to positions by centroid geometry alone.
//
// Centroids are first compared with the page midpoints. When any centroid lies within
// tolerance (a fraction of the page width/height) of a midpoint, or the midpoints do not
// separate the images into four distinct quadrants, the images are split by rank instead:
// the two leftmost form the left column and the two topmost the top row. If the gap at a
// rank split is itself within tolerance the assignment is ambiguous and fails.
func AssignQuadrants(pageWidth, pageHeight float64, cands []pdfdoc.ImageCandidate, tolerance float64) (map[constants.Position]pdfdoc.ImageCandidate, error) {
	page := 0
	if len(cands) > 0 {
		page = cands[0].Page
	}
	if len(cands) != 4 {
		return nil, common.QuadrantAmbiguityError(page, fmt.Errorf("need 4 images, got %d", len(cands)))
	}

	cs := make([]centroid, len(cands))
	for i, c := range cands {
		cx, cy := c.Box.Center()
		cs[i] = centroid{cand: c, cx: cx, cy: cy}
	}
	tolX, tolY := tolerance*pageWidth, tolerance*pageHeight

	if out, ok := byMidpoints(cs, pageWidth/2, pageHeight/2, tolX, tolY); ok {
		return out, nil
	}

	out, err := byRank(cs, tolX, tolY)
	if err != nil {
		return nil, common.QuadrantAmbiguityError(page, err)
	}
	return out, nil
}

func byMidpoints(cs []centroid, midX, midY, tolX, tolY float64) (map[constants.Position]pdfdoc.ImageCandidate, bool) {
	out := make(map[constants.Position]pdfdoc.ImageCandidate, 4)
	for _, c := range cs {
		if math.Abs(c.cx-midX) <= tolX || math.Abs(c.cy-midY) <= tolY {
			return nil, false
		}
		pos := quadrant(c.cx > midX, c.cy > midY)
		if _, taken := out[pos]; taken {
			return nil, false
		}
		out[pos] = c.cand
	}
	return out, true
}

func byRank(cs []centroid, tolX, tolY float64) (map[constants.Position]pdfdoc.ImageCandidate, error) {
	xs := append([]centroid(nil), cs...)
	sort.Slice(xs, func(i, j int) bool { return lessBy(xs[i], xs[j], true) })
	if gap := xs[2].cx - xs[1].cx; gap <= tolX {
		return nil, fmt.Errorf("columns not separable: centroid gap %.1fpt within tolerance %.1fpt", gap, tolX)
	}
	ys := append([]centroid(nil), cs...)
	sort.Slice(ys, func(i, j int) bool { return lessBy(ys[i], ys[j], false) })
	if gap := ys[2].cy - ys[1].cy; gap <= tolY {
		return nil, fmt.Errorf("rows not separable: centroid gap %.1fpt within tolerance %.1fpt", gap, tolY)
	}

	right := map[string]bool{key(xs[2]): true, key(xs[3]): true}
	bottom := map[string]bool{key(ys[2]): true, key(ys[3]): true}

	out := make(map[constants.Position]pdfdoc.ImageCandidate, 4)
	for _, c := range cs {
		pos := quadrant(right[key(c)], bottom[key(c)])
		if prev, taken := out[pos]; taken {
			return nil, fmt.Errorf("images %s and %s both fall in %s", prev.Name, c.cand.Name, pos)
		}
		out[pos] = c.cand
	}
	return out, nil
}

func quadrant(right, bottom bool) constants.Position {
	switch {
	case !right && !bottom:
		return constants.Before
	case right && !bottom:
		return constants.During1
	case !right && bottom:
		return constants.During2
	default:
		return constants.After
	}
}

// lessBy orders by one axis with the other axis, size and name as tie-breakers.
func lessBy(a, b centroid, horizontal bool) bool {
	p, q, r, s := a.cx, b.cx, a.cy, b.cy
	if !horizontal {
		p, q, r, s = a.cy, b.cy, a.cx, b.cx
	}
	if p != q {
		return p < q
	}
	if r != s {
		return r < s
	}
	if a.cand.Size != b.cand.Size {
		return a.cand.Size > b.cand.Size
	}
	return a.cand.Name < b.cand.Name
}

func key(c centroid) string {
	return fmt.Sprintf("%s@%.3f,%.3f", c.cand.Name, c.cx, c.cy)
}
