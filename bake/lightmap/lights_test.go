package lightmap

import (
	"bytes"
	"testing"

	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/logging"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectPointLights(t *testing.T) {
	lvl := litRoom(t,
		level.Thing{Type: lampType, X: 10, Y: 20},
		level.Thing{Type: 2, X: 30, Y: 30},
		level.Thing{Type: 7, X: 40, Y: 40},
		level.Thing{Type: lampType, X: 500, Y: 20},
	)
	hanging := PointLightDef{Type: 7, Radius: 50, Intensity: 0.5, Height: 4, Ceiling: true}

	var out bytes.Buffer
	log := logging.NewWriterLogger("test", false, &out, &out)
	lights := CollectPointLights(lvl, []PointLightDef{lamp(), hanging}, log)

	require.Len(t, lights, 2)
	assert.Equal(t, mgl32.Vec3{10, 20, 32}, lights[0].Origin)
	assert.Equal(t, 0, lights[0].Thing)
	assert.Equal(t, 0, lights[0].Leaf)
	assert.Equal(t, mgl32.Vec3{40, 40, 60}, lights[1].Origin)
	assert.Equal(t, float32(50), lights[1].Radius)
	assert.Equal(t, 2, lights[1].Thing)
	assert.Contains(t, out.String(), "outside the map")
}

func TestCollectAreaLights(t *testing.T) {
	lvl := twoRooms(t)

	lights := CollectAreaLights(lvl, []SurfaceLightDef{{Definition: lightPanel()}}, 32)
	// floor and ceiling of the tagged sector
	require.Len(t, lights, 2)
	for _, l := range lights {
		assert.False(t, l.Wall)
		assert.Equal(t, 3, l.Surf.Tag)
		assert.Same(t, &lvl.Surfaces[l.SurfaceIndex], l.Surf)
		// centre plus four 32 unit cells
		assert.Len(t, l.Origins, 5)
	}

	lights = CollectAreaLights(lvl, []SurfaceLightDef{{
		Definition: lightPanel(),
		Kinds:      []level.SurfaceType{level.Ceiling},
	}}, 32)
	require.Len(t, lights, 1)
	assert.Equal(t, level.Ceiling, lights[0].Surf.Type)

	untagged := lightPanel()
	untagged.Tag = 0
	assert.Empty(t, CollectAreaLights(lvl, []SurfaceLightDef{{Definition: untagged}}, 32))
}

func TestParameterizeFloor(t *testing.T) {
	lvl := litRoom(t)
	floor := surfaceOf(lvl, level.Floor)
	require.NotNil(t, floor)

	p := parameterize(floor, 8, 128, 128)
	assert.Equal(t, 9, p.width)
	assert.Equal(t, 9, p.height)
	assert.Equal(t, [2]int{0, 1}, p.axes)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, p.texel(0, 0))
	assert.Equal(t, mgl32.Vec3{64, 32, 0}, p.texel(8, 4))

	uvs := p.uvs(floor.Verts, 10, 20, 128, 128)
	for i, v := range floor.Verts {
		assert.InDelta(t, (v.X()/8+10.5)/128, uvs[i][0], 1e-6)
		assert.InDelta(t, (v.Y()/8+20.5)/128, uvs[i][1], 1e-6)
	}
}

func TestParameterizeClampsToPage(t *testing.T) {
	lvl := litRoom(t)
	floor := surfaceOf(lvl, level.Floor)

	p := parameterize(floor, 8, 5, 128)
	assert.Equal(t, 5, p.width)
	assert.Equal(t, 9, p.height)
	assert.InDelta(t, 16, p.scale[0], 1e-6)
	// the last clamped texel still reaches the far edge
	assert.InDelta(t, 64, p.texel(4, 0).X(), 1e-4)
}

func TestParameterizeWallStaysOnPlane(t *testing.T) {
	lvl := litRoom(t)
	for i := range lvl.Surfaces {
		s := &lvl.Surfaces[i]
		if !s.Type.IsWall() {
			continue
		}
		p := parameterize(s, 8, 128, 128)
		assert.Equal(t, 9, p.width, "surface %d", i)
		assert.Equal(t, 9, p.height, "surface %d", i)
		for _, xy := range [][2]int{{0, 0}, {8, 0}, {3, 5}, {8, 8}} {
			pt := p.texel(xy[0], xy[1])
			assert.InDelta(t, 0, s.Plane.Distance(pt), 1e-3, "surface %d texel %v", i, xy)
		}
	}
}
