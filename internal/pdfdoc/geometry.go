package pdfdoc

import (
	"math"

	"github.com/ledongthuc/pdf"
)

// Rect is an axis-aligned box in points with a top-left origin relative to the page.
type Rect struct {
	X, Y, W, H float64
}

// Center returns the centroid.
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m followed by n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// unitBounds maps the image unit square through m and returns its PDF-space bounds.
func (m matrix) unitBounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := m.apply(p[0], p[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return
}

// placement is one "Do" of an image XObject.
type placement struct {
	name string
	xobj pdf.Value
	ctm  matrix
}

const maxFormDepth = 4

// walkPlacements interprets a content stream and reports every image XObject drawn,
// descending into form XObjects.
func walkPlacements(contents pdf.Value, resources pdf.Value, base matrix, depth int, emit func(placement)) {
	streams := []pdf.Value{contents}
	if contents.Kind() == pdf.Array {
		streams = streams[:0]
		for i := 0; i < contents.Len(); i++ {
			streams = append(streams, contents.Index(i))
		}
	}

	xobjects := resources.Key("XObject")
	ctm := base
	var saved []matrix

	for _, s := range streams {
		if s.Kind() != pdf.Stream {
			continue
		}
		pdf.Interpret(s, func(stk *pdf.Stack, op string) {
			n := stk.Len()
			args := make([]pdf.Value, n)
			for i := n - 1; i >= 0; i-- {
				args[i] = stk.Pop()
			}
			switch op {
			case "q":
				saved = append(saved, ctm)
			case "Q":
				if len(saved) > 0 {
					ctm = saved[len(saved)-1]
					saved = saved[:len(saved)-1]
				}
			case "cm":
				if n != 6 {
					return
				}
				var m matrix
				for i := range m {
					m[i] = args[i].Float64()
				}
				ctm = m.mul(ctm)
			case "Do":
				if n != 1 || xobjects.Kind() != pdf.Dict {
					return
				}
				name := args[0].Name()
				xobj := xobjects.Key(name)
				switch xobj.Key("Subtype").Name() {
				case "Image":
					emit(placement{name: name, xobj: xobj, ctm: ctm})
				case "Form":
					if depth >= maxFormDepth {
						return
					}
					formCTM := ctm
					if fm := xobj.Key("Matrix"); fm.Kind() == pdf.Array && fm.Len() == 6 {
						var m matrix
						for i := range m {
							m[i] = fm.Index(i).Float64()
						}
						formCTM = m.mul(ctm)
					}
					formRes := xobj.Key("Resources")
					if formRes.IsNull() {
						formRes = resources
					}
					walkPlacements(xobj, formRes, formCTM, depth+1, emit)
				}
			}
		})
	}
}
