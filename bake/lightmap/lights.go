package lightmap

import (
	"github.com/gekko3d/lightbake/bake/arealight"
	"github.com/gekko3d/lightbake/bake/bsp"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/logging"
	"github.com/go-gl/mathgl/mgl32"
)

// PointLightDef is a light emitted by every placed thing of type Type.
// Height is measured up from the floor, or down from the ceiling when
// Ceiling is set.
type PointLightDef struct {
	Type      int
	Radius    float32
	Intensity float32
	Falloff   float32
	Height    float32
	Ceiling   bool
	Color     mgl32.Vec3
}

type PointLight struct {
	Origin    mgl32.Vec3
	Radius    float32
	Intensity float32
	Falloff   float32
	Color     mgl32.Vec3
	Leaf      int
	Sector    int
	Thing     int
}

// SurfaceLightDef turns every surface carrying Tag into an area light.
// Kinds limits which surface types qualify; empty means all of them.
type SurfaceLightDef struct {
	arealight.Definition
	Kinds []level.SurfaceType
}

func (d SurfaceLightDef) accepts(t level.SurfaceType) bool {
	if len(d.Kinds) == 0 {
		return true
	}
	for _, k := range d.Kinds {
		if k == t {
			return true
		}
	}
	return false
}

// CollectPointLights places a light for every thing with a matching
// definition. Things outside the map are skipped with a warning.
func CollectPointLights(lvl *level.Level, defs []PointLightDef, log logging.Logger) []PointLight {
	log = logging.OrNop(log)
	byType := make(map[int]PointLightDef, len(defs))
	for _, d := range defs {
		byType[d.Type] = d
	}

	var out []PointLight
	for i, th := range lvl.Things {
		def, ok := byType[th.Type]
		if !ok {
			continue
		}
		leaf, ok := bsp.PointInLeaf(lvl, th.X, th.Y)
		if !ok {
			log.Warnf("light thing %d (type %d) at (%g, %g) is outside the map", i, th.Type, th.X, th.Y)
			continue
		}
		sec, _ := lvl.LeafSector(leaf)
		z := sec.FloorHeight + def.Height
		if def.Ceiling {
			z = sec.CeilingHeight - def.Height
		}
		out = append(out, PointLight{
			Origin:    mgl32.Vec3{th.X, th.Y, z},
			Radius:    def.Radius,
			Intensity: def.Intensity,
			Falloff:   def.Falloff,
			Color:     def.Color,
			Leaf:      leaf,
			Sector:    lvl.Leaves[leaf].Sector,
			Thing:     i,
		})
	}
	return out
}

// CollectAreaLights wraps every tagged surface that matches a definition.
// Walls become single-sample wall lights; floors and ceilings are split
// into cells of cellSize.
func CollectAreaLights(lvl *level.Level, defs []SurfaceLightDef, cellSize float32) []*arealight.Surface {
	byTag := make(map[int]SurfaceLightDef, len(defs))
	for _, d := range defs {
		byTag[d.Tag] = d
	}

	var out []*arealight.Surface
	for i := range lvl.Surfaces {
		surf := &lvl.Surfaces[i]
		if surf.Tag == 0 {
			continue
		}
		def, ok := byTag[surf.Tag]
		if !ok || !def.accepts(surf.Type) {
			continue
		}
		wall := surf.Type.IsWall()
		l := arealight.New(def.Definition, i, surf, wall, def.NoCenter)
		l.Subdivide(cellSize)
		out = append(out, l)
	}
	return out
}
