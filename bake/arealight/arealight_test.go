package arealight

import (
	"fmt"
	"math"
	"testing"

	"github.com/gekko3d/lightbake/bake/bsp"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/trace"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var openCone = Definition{Distance: 64, Intensity: 1, InnerCone: 0, OuterCone: math.Pi / 2, Color: mgl32.Vec3{1, 1, 1}}

func square(size, z float32) *level.Surface {
	verts := []mgl32.Vec3{{0, 0, z}, {0, size, z}, {size, size, z}, {size, 0, z}}
	plane, _ := level.PlaneFromPolygon(verts)
	return &level.Surface{Type: level.Ceiling, Verts: verts, Plane: plane, AtlasIndex: -1}
}

func room(t *testing.T, b *level.Builder) *level.Level {
	t.Helper()
	lvl := b.Level()
	require.NoError(t, bsp.Build(lvl, nil))
	level.ExtractSurfaces(lvl, nil)
	return lvl
}

func bigRoom(t *testing.T) *level.Level {
	b := level.NewBuilder()
	sec := b.AddSector(level.Sector{FloorHeight: 0, CeilingHeight: 64})
	b.AddLeaf(sec, level.Box(0, 0, 64, 64)...)
	return room(t, b)
}

func find(lvl *level.Level, match func(s *level.Surface) bool) (int, *level.Surface) {
	for i := range lvl.Surfaces {
		if match(&lvl.Surfaces[i]) {
			return i, &lvl.Surfaces[i]
		}
	}
	return -1, nil
}

func TestSubdivideSquareQuadrants(t *testing.T) {
	l := New(openCone, 0, square(2, 10), false, true)
	assert.Empty(t, l.Origins)

	l.Subdivide(1)
	assert.ElementsMatch(t, []mgl32.Vec3{
		{0.5, 0.5, 10}, {1.5, 0.5, 10}, {0.5, 1.5, 10}, {1.5, 1.5, 10},
	}, l.Origins)
}

func squareAt(x, y, size, z float32) *level.Surface {
	verts := []mgl32.Vec3{{x, y, z}, {x, y + size, z}, {x + size, y + size, z}, {x + size, y, z}}
	plane, _ := level.PlaneFromPolygon(verts)
	return &level.Surface{Type: level.Ceiling, Verts: verts, Plane: plane, AtlasIndex: -1}
}

func TestSubdivideHalfSideQuadrants(t *testing.T) {
	sides := []float32{10, 0.9, 7.3, 3, 1.7, 100.5}
	offsets := []float32{0, 0.1, -57.3, 100.01, -1000.7, 4096.3}
	for _, side := range sides {
		for _, off := range offsets {
			t.Run(fmt.Sprintf("side %g at %g", side, off), func(t *testing.T) {
				x, y := off, -off*0.5
				l := New(openCone, 0, squareAt(x, y, side, off), false, true)
				l.Subdivide(side / 2)
				require.Len(t, l.Origins, 4)

				q := side / 4
				want := []mgl32.Vec3{
					{x + q, y + q, off}, {x + 3*q, y + q, off},
					{x + q, y + 3*q, off}, {x + 3*q, y + 3*q, off},
				}
				for _, w := range want {
					found := false
					for _, o := range l.Origins {
						if o.Sub(w).Len() < 0.01 {
							found = true
						}
					}
					assert.True(t, found, "no origin at quadrant centre %v in %v", w, l.Origins)
				}
				for _, o := range l.Origins {
					assert.InDelta(t, off, o.Z(), 0.01)
				}
			})
		}
	}
}

func TestSubdivideKeepsCentre(t *testing.T) {
	l := New(openCone, 0, square(2, 10), false, false)
	require.Len(t, l.Origins, 1)
	assert.Equal(t, mgl32.Vec3{1, 1, 10}, l.Origins[0])
	l.Subdivide(1)
	assert.Len(t, l.Origins, 5)
}

func TestSubdivideCounts(t *testing.T) {
	tests := []struct {
		name string
		size float32
		cell float32
		want int
	}{
		{"8 by 2", 8, 2, 16},
		{"no split needed", 4, 8, 1},
		{"cell equals side", 4, 4, 1},
		{"non power of two", 6, 2, 16},
		{"tiny cells are clamped", 1, 0.001, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(openCone, 0, square(tt.size, 0), false, true)
			l.Subdivide(tt.cell)
			assert.Len(t, l.Origins, tt.want)
		})
	}
}

func TestSubdivideDegenerateInputs(t *testing.T) {
	l := New(openCone, 0, square(4, 0), false, true)
	l.Subdivide(0)
	assert.Len(t, l.Origins, 1, "falls back to the centre")

	wall := New(openCone, 0, square(4, 0), true, true)
	require.Len(t, wall.Origins, 1)
	wall.Subdivide(1)
	assert.Len(t, wall.Origins, 1, "walls are never split")
}

func TestTraceToOriginDirectlyBelow(t *testing.T) {
	lvl := bigRoom(t)
	tr := trace.New(lvl)
	ci, ceiling := find(lvl, func(s *level.Surface) bool { return s.Type == level.Ceiling })
	_, floor := find(lvl, func(s *level.Surface) bool { return s.Type == level.Floor })

	l := New(openCone, ci, ceiling, false, false)
	ok, v := l.TraceToOrigin(tr, floor, mgl32.Vec3{32, 32, 1})
	require.True(t, ok)
	assert.InDelta(t, 1, v, 1e-6)

	half := openCone
	half.Distance = 31.5
	l = New(half, ci, ceiling, false, false)
	ok, v = l.TraceToOrigin(tr, floor, mgl32.Vec3{32, 32, 1})
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-5)

	ok, v = l.TraceToOrigin(tr, ceiling, mgl32.Vec3{1, 1, 64})
	assert.True(t, ok, "the light itself is fully lit")
	assert.Equal(t, float32(1), v)
}

func TestTraceToOriginRejects(t *testing.T) {
	lvl := bigRoom(t)
	tr := trace.New(lvl)
	ci, ceiling := find(lvl, func(s *level.Surface) bool { return s.Type == level.Ceiling })
	l := New(openCone, ci, ceiling, false, false)

	facingAway := square(4, 10)
	ok, _ := l.TraceToOrigin(tr, facingAway, mgl32.Vec3{1, 1, 10})
	assert.False(t, ok, "receiver faces the same way as the light")

	ok, _ = l.TraceToOrigin(tr, nil, mgl32.Vec3{32, 32, 80})
	assert.False(t, ok, "behind the light plane")

	narrow := openCone
	narrow.InnerCone = 0.05
	narrow.OuterCone = 0.1
	l = New(narrow, ci, ceiling, false, false)
	ok, _ = l.TraceToOrigin(tr, nil, mgl32.Vec3{60, 60, 2})
	assert.False(t, ok, "outside the outer cone")
}

func TestTraceToOriginTakesBrightestSample(t *testing.T) {
	lvl := bigRoom(t)
	tr := trace.New(lvl)
	ci, ceiling := find(lvl, func(s *level.Surface) bool { return s.Type == level.Ceiling })
	_, floor := find(lvl, func(s *level.Surface) bool { return s.Type == level.Floor })

	def := openCone
	def.Distance = 20
	l := New(def, ci, ceiling, false, true)
	l.Subdivide(32)
	require.Len(t, l.Origins, 4)

	ok, v := l.TraceToOrigin(tr, floor, mgl32.Vec3{16, 16, 1})
	require.True(t, ok)
	assert.InDelta(t, 20.0/63.0, v, 1e-5, "nearest origin wins, contributions are not summed")
}

func TestTraceToOriginOccluded(t *testing.T) {
	b := level.NewBuilder()
	low := b.AddSector(level.Sector{FloorHeight: 0, CeilingHeight: 20})
	high := b.AddSector(level.Sector{FloorHeight: 8, CeilingHeight: 12})
	b.AddLeaf(low, level.Box(0, 0, 10, 10)...)
	b.AddLeaf(high, level.Box(10, 0, 20, 10)...)
	lvl := room(t, b)
	tr := trace.New(lvl)

	ci, ceiling := find(lvl, func(s *level.Surface) bool { return s.Type == level.Ceiling && s.Sector == low })
	_, floor := find(lvl, func(s *level.Surface) bool { return s.Type == level.Floor && s.Sector == high })
	l := New(openCone, ci, ceiling, false, false)

	ok, _ := l.TraceToOrigin(tr, floor, mgl32.Vec3{15, 5, 9})
	assert.False(t, ok, "upper wall blocks the view of the low room's ceiling")

	_, lowFloor := find(lvl, func(s *level.Surface) bool { return s.Type == level.Floor && s.Sector == low })
	ok, _ = l.TraceToOrigin(tr, lowFloor, mgl32.Vec3{5, 5, 1})
	assert.True(t, ok)
}

func TestWallLightSnapsToReceiverHeight(t *testing.T) {
	lvl := bigRoom(t)
	tr := trace.New(lvl)
	wi, wall := find(lvl, func(s *level.Surface) bool { return s.Type == level.WallMiddle && s.Plane.Normal.X() > 0.5 })
	require.NotNil(t, wall)

	def := openCone
	def.Distance = 40
	l := New(def, wi, wall, true, false)
	require.Len(t, l.Origins, 1)

	ok, v := l.TraceToOrigin(tr, nil, mgl32.Vec3{20, 32, 5})
	require.True(t, ok)
	assert.InDelta(t, 1, v, 1e-6)

	def.Distance = 10
	l = New(def, wi, wall, true, false)
	ok, v = l.TraceToOrigin(tr, nil, mgl32.Vec3{20, 32, 60})
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-5, "distance measured at the receiver's height")
}
