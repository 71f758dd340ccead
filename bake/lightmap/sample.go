package lightmap

import (
	"math"

	"github.com/gekko3d/lightbake/bake/grid"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/go-gl/mathgl/mgl32"
)

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// lerp3 moves c toward target by t. Blending instead of adding keeps every
// channel inside [0,1] however many lights reach a point.
func lerp3(c, target mgl32.Vec3, t float32) mgl32.Vec3 {
	return c.Add(target.Sub(c).Mul(t))
}

func pow32(v, e float32) float32 {
	if e == 1 || e == 0 {
		return v
	}
	return float32(math.Pow(float64(v), float64(e)))
}

func clampColor(c mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{clamp01(c.X()), clamp01(c.Y()), clamp01(c.Z())}
}

// lightTexel accumulates every light reaching point on surface si.
func (b *Builder) lightTexel(si int, surf *level.Surface, point mgl32.Vec3) mgl32.Vec3 {
	color := b.opts.Ambient
	normal := surf.Plane.Normal

	for i := range b.pointLights {
		l := &b.pointLights[i]
		if !b.lvl.PVS.Visible(surf.Leaf, l.Leaf) {
			continue
		}
		if surf.Plane.Distance(l.Origin) <= 0 {
			continue
		}
		dir := l.Origin.Sub(point)
		dist2 := dir.LenSqr()
		if dist2 > l.Radius*l.Radius || dist2 == 0 {
			continue
		}
		dist := float32(math.Sqrt(float64(dist2)))
		cos := normal.Dot(dir) / dist
		if cos <= 0 {
			continue
		}
		if b.tracer.Trace(l.Origin, point).Fraction != 1 {
			continue
		}
		amount := max(l.Radius-dist, 0) * cos / l.Radius * l.Intensity
		amount = clamp01(pow32(amount, l.Falloff))
		color = lerp3(color, l.Color, amount)
	}

	if surf.Type != level.Ceiling && b.skyVisible(surf.Leaf) {
		sun := b.opts.SunDirection
		if cos := normal.Dot(sun); cos > 0 {
			res := b.tracer.Trace(point, point.Add(sun.Mul(b.opts.TraceDistance)))
			if hit, ok := b.lvl.Surface(res.Surface); ok && hit.Sky {
				color = lerp3(color, b.opts.SunColor, cos)
			}
		}
	}

	for _, al := range b.areaLights {
		if !b.lvl.PVS.Visible(surf.Leaf, al.Surf.Leaf) {
			continue
		}
		ok, v := al.TraceToOrigin(b.tracer, surf, point)
		if !ok {
			continue
		}
		amount := clamp01(pow32(v, al.Def.Falloff) * al.Def.Intensity)
		color = lerp3(color, al.Def.Color, amount)
	}
	return clampColor(color)
}

// lightCell samples one grid cell. leaf is the leaf found under the cell's
// column.
func (b *Builder) lightCell(org mgl32.Vec3, leaf int) grid.Cell {
	cell := grid.Cell{Marked: true}
	color := b.opts.Ambient

	for i := range b.pointLights {
		l := &b.pointLights[i]
		if !b.lvl.PVS.Visible(leaf, l.Leaf) {
			continue
		}
		dist2 := l.Origin.Sub(org).LenSqr()
		r2 := l.Radius * l.Radius
		if dist2 > r2 {
			continue
		}
		if b.tracer.Trace(l.Origin, org).Fraction != 1 {
			continue
		}
		amount := float32(1)
		if dist2 > 0 {
			amount = clamp01(min(2*l.Intensity, 1) * (r2/dist2 - 1))
		}
		color = lerp3(color, l.Color, amount)
	}

	sec, _ := b.lvl.LeafSector(leaf)
	sun := b.opts.SunDirection
	res := b.tracer.Trace(org, org.Add(mgl32.Vec3{0, 0, b.opts.TraceDistance}))
	if hit, ok := b.lvl.Surface(res.Surface); ok && hit.Sky && sec != nil &&
		org.Z() >= sec.FloorHeight && org.Z()-sec.FloorHeight <= b.opts.GridCellSize.Z() {
		cell.Shadow = grid.FullSun
		color = lerp3(color, b.opts.SunColor, clamp01(sun.Z()))
	} else if sec != nil && sec.SkyCeiling {
		cell.Shadow = grid.SkyShadow
		color = lerp3(color, b.opts.SunColor, clamp01(sun.Z())*0.5)
	}

	for _, al := range b.areaLights {
		if !b.lvl.PVS.Visible(leaf, al.Surf.Leaf) {
			continue
		}
		ok, v := al.TraceToOrigin(b.tracer, nil, org)
		if !ok {
			continue
		}
		amount := clamp01(pow32(v, al.Def.Falloff) * al.Def.Intensity * 0.5)
		color = lerp3(color, al.Def.Color, amount)
	}

	cell.Color = clampColor(color)
	return cell
}
