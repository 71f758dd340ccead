package level

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Projection planes, numbered by the dominant normal component they drop.
const (
	AxisYZ = 0
	AxisXZ = 1
	AxisXY = 2
)

// Plane is stored as unit normal plus signed distance: N·p - Dist = 0.
type Plane struct {
	Normal mgl32.Vec3
	Dist   float32
}

func NewPlane(normal, point mgl32.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Dist: n.Dot(point)}
}

// PlaneFromPolygon fits a plane to a planar polygon using Newell's method.
// The normal follows the right-hand rule over the vertex order.
func PlaneFromPolygon(verts []mgl32.Vec3) (Plane, bool) {
	if len(verts) < 3 {
		return Plane{}, false
	}
	var n, centroid mgl32.Vec3
	for i, cur := range verts {
		next := verts[(i+1)%len(verts)]
		n[0] += (cur.Y() - next.Y()) * (cur.Z() + next.Z())
		n[1] += (cur.Z() - next.Z()) * (cur.X() + next.X())
		n[2] += (cur.X() - next.X()) * (cur.Y() + next.Y())
		centroid = centroid.Add(cur)
	}
	if n.Len() < 1e-6 {
		return Plane{}, false
	}
	centroid = centroid.Mul(1 / float32(len(verts)))
	return NewPlane(n, centroid), true
}

// Distance is the signed distance of p from the plane.
func (p Plane) Distance(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) - p.Dist
}

// BestAxis returns the axis pair the plane projects onto with the least
// distortion: the one orthogonal to the dominant normal component.
func (p Plane) BestAxis() int {
	ax := math.Abs(float64(p.Normal.X()))
	ay := math.Abs(float64(p.Normal.Y()))
	az := math.Abs(float64(p.Normal.Z()))
	if ax >= ay && ax >= az {
		return AxisYZ
	}
	if ay >= az {
		return AxisXZ
	}
	return AxisXY
}
