package level

import (
	"math"
	"sort"

	"github.com/gekko3d/lightbake/bake/logging"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	edgeEpsilon   = 1e-3
	heightEpsilon = 1e-3
)

type edgeRef struct {
	leaf int
	a, b mgl32.Vec2
}

type edgeSpan struct {
	t0, t1   float32
	neighbor int
}

// ExtractSurfaces rebuilds every wall, floor and ceiling surface from the
// leaves and appends each to its owning leaf's surface list. It returns the
// number of leaves skipped for having fewer than three boundary vertices.
func ExtractSurfaces(l *Level, log logging.Logger) int {
	log = logging.OrNop(log)
	l.Surfaces = l.Surfaces[:0]
	for i := range l.Leaves {
		l.Leaves[i].Surfaces = nil
	}

	var edges []edgeRef
	for i := range l.Leaves {
		poly := l.LeafPolygon(i)
		if len(poly) < 3 {
			continue
		}
		for e := range poly {
			edges = append(edges, edgeRef{leaf: i, a: poly[e], b: poly[(e+1)%len(poly)]})
		}
	}

	skipped := 0
	for i := range l.Leaves {
		leaf := &l.Leaves[i]
		sec, ok := l.Sector(leaf.Sector)
		if !ok {
			continue
		}
		poly := l.LeafPolygon(i)
		if len(poly) < 3 {
			log.Warnf("leaf %d has %d boundary vertices, skipping floor and ceiling", i, len(poly))
			skipped++
			continue
		}

		for e := range poly {
			a, b := poly[e], poly[(e+1)%len(poly)]
			tag := leaf.LineTag(e)
			for _, sp := range edgeSpans(edges, i, a, b) {
				d := b.Sub(a)
				p0 := a.Add(d.Mul(sp.t0))
				p1 := a.Add(d.Mul(sp.t1))
				if sp.neighbor < 0 {
					l.addWall(WallMiddle, i, leaf.Sector, tag, p0, p1, sec.FloorHeight, sec.CeilingHeight)
					continue
				}
				nsec, ok := l.LeafSector(sp.neighbor)
				if !ok || l.Leaves[sp.neighbor].Sector == leaf.Sector {
					continue
				}
				if nsec.FloorHeight > sec.FloorHeight {
					l.addWall(WallLower, i, leaf.Sector, tag, p0, p1, sec.FloorHeight, min(nsec.FloorHeight, sec.CeilingHeight))
				}
				if nsec.CeilingHeight < sec.CeilingHeight && !(sec.SkyCeiling && nsec.SkyCeiling) {
					l.addWall(WallUpper, i, leaf.Sector, tag, p0, p1, max(nsec.CeilingHeight, sec.FloorHeight), sec.CeilingHeight)
				}
			}
		}

		floor := make([]mgl32.Vec3, len(poly))
		ceiling := make([]mgl32.Vec3, len(poly))
		for k, p := range poly {
			floor[k] = mgl32.Vec3{p.X(), p.Y(), sec.FloorHeight}
			ceiling[len(poly)-1-k] = mgl32.Vec3{p.X(), p.Y(), sec.CeilingHeight}
		}
		l.addSurface(Surface{
			Type:   Floor,
			Verts:  floor,
			Plane:  Plane{Normal: mgl32.Vec3{0, 0, 1}, Dist: sec.FloorHeight},
			Leaf:   i,
			Sector: leaf.Sector,
			Tag:    sec.Tag,
		})
		l.addSurface(Surface{
			Type:   Ceiling,
			Verts:  ceiling,
			Plane:  Plane{Normal: mgl32.Vec3{0, 0, -1}, Dist: -sec.CeilingHeight},
			Leaf:   i,
			Sector: leaf.Sector,
			Tag:    sec.Tag,
			Sky:    sec.SkyCeiling,
		})
	}
	return skipped
}

func (l *Level) addWall(t SurfaceType, leaf, sector, tag int, p0, p1 mgl32.Vec2, lo, hi float32) {
	if hi-lo <= heightEpsilon {
		return
	}
	d := p1.Sub(p0)
	if d.Len() <= edgeEpsilon {
		return
	}
	verts := []mgl32.Vec3{
		{p0.X(), p0.Y(), lo},
		{p1.X(), p1.Y(), lo},
		{p1.X(), p1.Y(), hi},
		{p0.X(), p0.Y(), hi},
	}
	// interior of a counter-clockwise leaf is on the left of each edge
	l.addSurface(Surface{
		Type:   t,
		Verts:  verts,
		Plane:  NewPlane(mgl32.Vec3{-d.Y(), d.X(), 0}, verts[0]),
		Leaf:   leaf,
		Sector: sector,
		Tag:    tag,
	})
}

func (l *Level) addSurface(s Surface) {
	s.AtlasIndex = -1
	l.Surfaces = append(l.Surfaces, s)
	idx := len(l.Surfaces) - 1
	l.Leaves[s.Leaf].Surfaces = append(l.Leaves[s.Leaf].Surfaces, idx)
}

// edgeSpans splits edge a→b of leaf self into parameter ranges, each either
// shared with a neighbouring leaf's reversed collinear edge or open (-1).
func edgeSpans(edges []edgeRef, self int, a, b mgl32.Vec2) []edgeSpan {
	d := b.Sub(a)
	length := d.Len()
	if length <= edgeEpsilon {
		return nil
	}
	len2 := length * length
	tEps := float32(edgeEpsilon) / length

	var covered []edgeSpan
	for _, o := range edges {
		if o.leaf == self {
			continue
		}
		od := o.b.Sub(o.a)
		if d.Dot(od) >= 0 {
			continue
		}
		if abs32(cross2(d, o.a.Sub(a)))/length > edgeEpsilon || abs32(cross2(d, o.b.Sub(a)))/length > edgeEpsilon {
			continue
		}
		t0 := d.Dot(o.b.Sub(a)) / len2
		t1 := d.Dot(o.a.Sub(a)) / len2
		lo := max(min(t0, t1), 0)
		hi := min(max(t0, t1), 1)
		if hi-lo <= tEps {
			continue
		}
		covered = append(covered, edgeSpan{t0: lo, t1: hi, neighbor: o.leaf})
	}
	sort.Slice(covered, func(i, j int) bool {
		if covered[i].t0 != covered[j].t0 {
			return covered[i].t0 < covered[j].t0
		}
		return covered[i].neighbor < covered[j].neighbor
	})

	var out []edgeSpan
	var cursor float32
	for _, c := range covered {
		if c.t0 > cursor+tEps {
			out = append(out, edgeSpan{t0: cursor, t1: c.t0, neighbor: -1})
			cursor = c.t0
		}
		start := max(c.t0, cursor)
		if c.t1 > start+tEps {
			out = append(out, edgeSpan{t0: start, t1: c.t1, neighbor: c.neighbor})
			cursor = c.t1
		}
	}
	if cursor < 1-tEps {
		out = append(out, edgeSpan{t0: cursor, t1: 1, neighbor: -1})
	}
	return out
}

func cross2(a, b mgl32.Vec2) float32 {
	return a.X()*b.Y() - a.Y()*b.X()
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
