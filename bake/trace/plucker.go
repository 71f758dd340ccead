package trace

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// pluckerEps is relative to |ray|·|a|·|b| so the tolerance scales with the
// size of the polygon and the length of the ray.
const pluckerEps = 1e-6

func vec64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X()), float64(v.Y()), float64(v.Z())}
}

// edgeSides computes the permuted inner product of the line through start
// and end with every polygon edge. With the origin moved to start, the ray
// line has moment zero and the product reduces to dir·(a×b). Values within
// the tolerance come back as exactly zero.
func edgeSides(verts []mgl32.Vec3, start, end mgl32.Vec3) []float64 {
	s := vec64(start)
	dir := vec64(end).Sub(s)
	dl := dir.Len()
	out := make([]float64, len(verts))
	for i := range verts {
		a := vec64(verts[i]).Sub(s)
		b := vec64(verts[(i+1)%len(verts)]).Sub(s)
		side := dir.Dot(a.Cross(b))
		if abs64(side) <= pluckerEps*dl*a.Len()*b.Len() {
			side = 0
		}
		out[i] = side
	}
	return out
}

// EdgeMask returns one bit per polygon edge, set when the ray passes the
// edge on its positive side. For a convex polygon a ray through the interior
// sets every bit or none; crossing outside one edge flips only that bit.
func EdgeMask(verts []mgl32.Vec3, start, end mgl32.Vec3) uint64 {
	var mask uint64
	for i, side := range edgeSides(verts, start, end) {
		if i < 64 && side > 0 {
			mask |= 1 << i
		}
	}
	return mask
}

// Contains reports whether the line through start and end pierces the convex
// polygon. A ray grazing an edge counts as inside so neighbouring polygons
// leave no cracks.
func Contains(verts []mgl32.Vec3, start, end mgl32.Vec3) bool {
	if len(verts) < 3 {
		return false
	}
	pos, neg := false, false
	for _, side := range edgeSides(verts, start, end) {
		switch {
		case side > 0:
			pos = true
		case side < 0:
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
