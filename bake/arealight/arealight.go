// Package arealight models light-emitting surfaces. A surface light is
// reduced to a set of sample origins; a receiver takes the brightest
// unoccluded origin rather than a sum over all of them.
package arealight

import (
	"math"

	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/trace"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	clipEps  = 0.1
	maxDepth = 32
	// cells narrower than this would not separate from the clip band
	minCell = 4 * clipEps
	// DefaultNudge lifts trace endpoints off the light and receiver planes.
	DefaultNudge = 1
)

// Definition describes a surface light. Cone angles are radians.
type Definition struct {
	Tag       int
	Distance  float32
	Intensity float32
	Falloff   float32
	InnerCone float32
	OuterCone float32
	Color     mgl32.Vec3
	NoCenter  bool
}

type Surface struct {
	Def          Definition
	SurfaceIndex int
	Surf         *level.Surface
	Wall         bool
	Origins      []mgl32.Vec3
	Nudge        float32

	innerCos float32
	outerCos float32
}

// New wraps surf as a light. Walls always get exactly one centre sample;
// other surfaces start with the centre unless noCenter is set and gain
// more origins from Subdivide.
func New(def Definition, surfIdx int, surf *level.Surface, isWall, noCenter bool) *Surface {
	s := &Surface{
		Def:          def,
		SurfaceIndex: surfIdx,
		Surf:         surf,
		Wall:         isWall,
		Nudge:        DefaultNudge,
		innerCos:     float32(math.Cos(float64(def.InnerCone))),
		outerCos:     float32(math.Cos(float64(def.OuterCone))),
	}
	if surf != nil && (isWall || !noCenter) {
		s.Origins = append(s.Origins, surf.Centroid())
	}
	return s
}

// Subdivide splits the polygon at axis midpoints until no cell is wider
// than cellSize along any axis and adds one origin per cell. Wall lights
// keep their single centre sample.
func (s *Surface) Subdivide(cellSize float32) {
	if s.Wall || s.Surf == nil {
		return
	}
	if cellSize > 0 {
		s.subdivide(s.Surf.Verts, max(cellSize, minCell), 0)
	}
	if len(s.Origins) == 0 {
		s.Origins = append(s.Origins, s.Surf.Centroid())
	}
}

func (s *Surface) subdivide(verts []mgl32.Vec3, cellSize float32, depth int) {
	if len(verts) < 3 {
		return
	}
	bounds := level.BoundsOf(verts)
	slack := splitSlack(bounds, cellSize)
	axis := -1
	for a := 0; a < 3; a++ {
		if bounds[1][a]-bounds[0][a]-cellSize > slack {
			axis = a
			break
		}
	}
	if axis < 0 || depth >= maxDepth {
		s.Origins = append(s.Origins, level.Centroid(verts))
		return
	}

	mid := (bounds[0][axis] + bounds[1][axis]) * 0.5
	front, back := splitPolygon(verts, axis, mid)
	s.subdivide(front, cellSize, depth+1)
	s.subdivide(back, cellSize, depth+1)
}

// splitSlack is how far an extent may exceed cellSize and still count as
// one cell. A midpoint split rounds to the float32 grid at the polygon's
// coordinates, so an exact halving can land a few ulps above cellSize.
func splitSlack(bounds [2]mgl32.Vec3, cellSize float32) float32 {
	var mag float32
	for a := 0; a < 3; a++ {
		mag = max(mag, abs32(bounds[0][a]), abs32(bounds[1][a]))
	}
	return cellSize*1e-4 + mag*16*epsilon32
}

const epsilon32 = 1.0 / (1 << 23)

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// splitPolygon cuts a convex polygon with the plane p[axis] = dist. Vertices
// within clipEps of the plane go to both halves.
func splitPolygon(verts []mgl32.Vec3, axis int, dist float32) (front, back []mgl32.Vec3) {
	n := len(verts)
	dists := make([]float32, n)
	sides := make([]int, n)
	for i, v := range verts {
		dists[i] = v[axis] - dist
		switch {
		case dists[i] > clipEps:
			sides[i] = 1
		case dists[i] < -clipEps:
			sides[i] = -1
		}
	}

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		v := verts[i]
		switch sides[i] {
		case 1:
			front = append(front, v)
		case -1:
			back = append(back, v)
		default:
			front = append(front, v)
			back = append(back, v)
			continue
		}
		if sides[j] == 0 || sides[j] == sides[i] {
			continue
		}
		t := dists[i] / (dists[i] - dists[j])
		mid := v.Add(verts[j].Sub(v).Mul(t))
		mid[axis] = dist
		front = append(front, mid)
		back = append(back, mid)
	}
	return front, back
}

// TraceToOrigin returns whether any sample origin lights point and the
// strongest attenuated contribution among them. receiver is the surface
// the point lies on, or nil for free-standing points such as grid cells.
func (s *Surface) TraceToOrigin(tr *trace.Tracer, receiver *level.Surface, point mgl32.Vec3) (bool, float32) {
	if s.Surf == nil {
		return false, 0
	}
	if receiver == s.Surf {
		return true, 1
	}

	lnormal := s.Surf.Plane.Normal
	var rnormal mgl32.Vec3
	if receiver != nil {
		rnormal = receiver.Plane.Normal
		if rnormal.Dot(lnormal) > 0 {
			return false, 0
		}
	}

	// the back of a floor or ceiling light never sees anything
	if !s.Wall && s.Surf.Plane.Distance(point) < 0 {
		return false, 0
	}

	lit := false
	best := float32(0)
	for _, origin := range s.Origins {
		center := origin

		var cos float32
		if s.Wall {
			cos = cos2D(point.Sub(center), lnormal)
		} else {
			dir := point.Sub(center)
			if dir.Len() == 0 {
				cos = 1
			} else {
				dir = dir.Normalize()
				if receiver != nil && rnormal.Dot(dir) >= 0 {
					continue
				}
				cos = min(dir.Dot(lnormal), s.innerCos)
			}
		}
		if cos < s.outerCos || cos > 1 {
			continue
		}

		if s.Wall {
			center[2] = point.Z()
		}

		res := tr.Trace(center.Add(lnormal.Mul(s.Nudge)), point.Add(rnormal.Mul(s.Nudge)))
		if res.Fraction != 1 {
			continue
		}

		d := point.Sub(center).Len()
		cur := float32(1)
		if d > 0 {
			cur = min(s.Def.Distance/d, 1)
		}
		if cos < s.innerCos && s.innerCos > s.outerCos {
			cur *= (cos - s.outerCos) / (s.innerCos - s.outerCos)
		}
		if !lit || cur > best {
			best = cur
		}
		lit = true
	}
	return lit, best
}

// cos2D is the cosine between the XY projections of v and n.
func cos2D(v, n mgl32.Vec3) float32 {
	a := mgl32.Vec2{v.X(), v.Y()}
	b := mgl32.Vec2{n.X(), n.Y()}
	if a.Len() == 0 || b.Len() == 0 {
		return 1
	}
	return a.Normalize().Dot(b.Normalize())
}
