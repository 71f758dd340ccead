package lightmap

import (
	"math"

	"github.com/gekko3d/lightbake/bake/level"
	"github.com/go-gl/mathgl/mgl32"
)

// surfaceParams maps raster texels onto a surface. Texel (x, y) samples
// origin + x*steps[0] + y*steps[1], which lies on the surface plane.
type surfaceParams struct {
	width, height int
	origin        mgl32.Vec3
	steps         [2]mgl32.Vec3
	axes          [2]int
	// world units per texel along axes, before projection onto the plane
	scale [2]float32
	min   mgl32.Vec3
}

var projectionAxes = [3][2]int{
	level.AxisYZ: {1, 2},
	level.AxisXZ: {0, 2},
	level.AxisXY: {0, 1},
}

// parameterize rounds the surface box out to the sample step, picks the
// projection that drops the dominant normal axis and clamps the raster to
// the page size, stretching the steps so the raster still spans the box.
func parameterize(surf *level.Surface, samples float32, maxW, maxH int) surfaceParams {
	bounds := surf.Bounds()
	for a := 0; a < 3; a++ {
		bounds[0][a] = samples * float32(math.Floor(float64(bounds[0][a]/samples)))
		bounds[1][a] = samples * float32(math.Ceil(float64(bounds[1][a]/samples)))
	}

	dominant := surf.Plane.BestAxis()
	p := surfaceParams{axes: projectionAxes[dominant], min: bounds[0]}
	limits := [2]int{maxW, maxH}
	var dims [2]int
	for i, a := range p.axes {
		dims[i] = int((bounds[1][a]-bounds[0][a])/samples+0.5) + 1
		p.scale[i] = samples
		if dims[i] > limits[i] {
			if limits[i] > 1 {
				p.scale[i] *= float32(dims[i]-1) / float32(limits[i]-1)
			}
			dims[i] = limits[i]
		}
	}
	p.width, p.height = dims[0], dims[1]

	n := surf.Plane.Normal
	p.origin = bounds[0]
	p.origin[dominant] -= surf.Plane.Distance(bounds[0]) / n[dominant]
	for i, a := range p.axes {
		var step mgl32.Vec3
		step[a] = p.scale[i]
		step[dominant] -= step.Dot(n) / n[dominant]
		p.steps[i] = step
	}
	return p
}

func (p *surfaceParams) texel(x, y int) mgl32.Vec3 {
	return p.origin.Add(p.steps[0].Mul(float32(x))).Add(p.steps[1].Mul(float32(y)))
}

// uvs places every vertex on the atlas page: lattice texel k of the raster
// lands on the centre of page texel atlasX+k.
func (p *surfaceParams) uvs(verts []mgl32.Vec3, atlasX, atlasY, pageW, pageH int) [][2]float32 {
	out := make([][2]float32, len(verts))
	for i, v := range verts {
		off := v.Sub(p.min)
		u := off[p.axes[0]]/p.scale[0] + float32(atlasX) + 0.5
		w := off[p.axes[1]]/p.scale[1] + float32(atlasY) + 0.5
		out[i] = [2]float32{u / float32(pageW), w / float32(pageH)}
	}
	return out
}
