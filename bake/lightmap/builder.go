// Package lightmap bakes surface lightmaps and the volumetric light grid.
//
// Surfaces are sampled in parallel. Finished rasters are packed in surface
// order, so a bake produces the same atlas pages whatever the worker count.
package lightmap

import (
	"fmt"
	"sync"

	"github.com/gekko3d/lightbake/bake/arealight"
	"github.com/gekko3d/lightbake/bake/atlas"
	"github.com/gekko3d/lightbake/bake/bsp"
	"github.com/gekko3d/lightbake/bake/grid"
	"github.com/gekko3d/lightbake/bake/jobs"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/logging"
	"github.com/gekko3d/lightbake/bake/trace"
	"github.com/go-gl/mathgl/mgl32"
)

type Options struct {
	// Samples is the texel spacing in world units.
	Samples         float32
	TextureWidth    int
	TextureHeight   int
	GridCellSize    mgl32.Vec3
	AreaSubdivision float32
	// Nudge lifts texel sample points off their surface.
	Nudge float32
	// SunDirection points toward the sun and must be unit length.
	SunDirection  mgl32.Vec3
	SunColor      mgl32.Vec3
	Ambient       mgl32.Vec3
	TraceDistance float32

	PointLights   []PointLightDef
	SurfaceLights []SurfaceLightDef
}

func DefaultOptions() Options {
	return Options{
		Samples:         16,
		TextureWidth:    128,
		TextureHeight:   128,
		GridCellSize:    mgl32.Vec3{32, 32, 32},
		AreaSubdivision: 16,
		Nudge:           1,
		SunDirection:    mgl32.Vec3{0.45, 0.3, 0.84}.Normalize(),
		SunColor:        mgl32.Vec3{1, 1, 1},
		TraceDistance:   32768,
	}
}

// Stats summarises a finished bake.
type Stats struct {
	Surfaces     int
	UsedSurfaces int
	Texels       int
	Pages        int
	GridCells    int
	MarkedCells  int
	PointLights  int
	AreaLights   int
}

type Builder struct {
	lvl    *level.Level
	opts   Options
	log    logging.Logger
	tracer *trace.Tracer

	pointLights []PointLight
	areaLights  []*arealight.Surface
	sky         []bool

	Atlas *atlas.Atlas
	Grid  *grid.Grid

	// ordered commit of finished rasters
	commitMu   sync.Mutex
	commitCond *sync.Cond
	nextCommit int
	commitErr  error
	texels     int
}

// NewBuilder prepares a bake over lvl, which must already have its tree and
// surfaces. Lights are collected from the level's things and tagged
// surfaces.
func NewBuilder(lvl *level.Level, opts Options, log logging.Logger) (*Builder, error) {
	if err := lvl.Validate(); err != nil {
		return nil, err
	}
	if opts.Samples <= 0 {
		return nil, fmt.Errorf("lightmap: samples must be positive, got %g", opts.Samples)
	}
	if opts.TextureWidth <= 0 || opts.TextureHeight <= 0 {
		return nil, fmt.Errorf("lightmap: invalid texture size %dx%d", opts.TextureWidth, opts.TextureHeight)
	}
	b := &Builder{
		lvl:    lvl,
		opts:   opts,
		log:    logging.OrNop(log),
		tracer: trace.New(lvl),
		Atlas:  atlas.New(opts.TextureWidth, opts.TextureHeight),
	}
	b.commitCond = sync.NewCond(&b.commitMu)
	b.pointLights = CollectPointLights(lvl, opts.PointLights, b.log)
	b.areaLights = CollectAreaLights(lvl, opts.SurfaceLights, opts.AreaSubdivision)
	for _, al := range b.areaLights {
		al.Nudge = opts.Nudge
	}
	b.sky = skyVisibility(lvl)
	b.log.Infof("%d point lights, %d area lights, %d surfaces", len(b.pointLights), len(b.areaLights), len(lvl.Surfaces))
	return b, nil
}

func (b *Builder) Tracer() *trace.Tracer { return b.tracer }
func (b *Builder) PointLights() []PointLight { return b.pointLights }
func (b *Builder) AreaLights() []*arealight.Surface { return b.areaLights }
func (b *Builder) Level() *level.Level { return b.lvl }

// skyVisibility marks leaves that can see some leaf with a sky ceiling.
func skyVisibility(lvl *level.Level) []bool {
	skyLeaf := make([]bool, len(lvl.Leaves))
	anySky := false
	for i := range lvl.Leaves {
		if sec, ok := lvl.LeafSector(i); ok && sec.SkyCeiling {
			skyLeaf[i] = true
			anySky = true
		}
	}
	out := make([]bool, len(lvl.Leaves))
	if !anySky {
		return out
	}
	for a := range out {
		for c, sky := range skyLeaf {
			if sky && lvl.PVS.Visible(a, c) {
				out[a] = true
				break
			}
		}
	}
	return out
}

func (b *Builder) skyVisible(leaf int) bool {
	return leaf >= 0 && leaf < len(b.sky) && b.sky[leaf]
}

// BakeSurfaces samples every surface and packs the lit ones into the atlas.
func (b *Builder) BakeSurfaces(d *jobs.Dispatcher) error {
	b.commitMu.Lock()
	b.nextCommit, b.commitErr, b.texels = 0, nil, 0
	b.commitMu.Unlock()

	jobs.Run(d, "surfaces", len(b.lvl.Surfaces), b, (*Builder).bakeSurface)

	if b.commitErr != nil {
		return b.commitErr
	}
	b.log.Infof("packed %d atlas pages", b.Atlas.PageCount())
	return nil
}

func (b *Builder) bakeSurface(si int) {
	surf := &b.lvl.Surfaces[si]
	params := parameterize(surf, b.opts.Samples, b.opts.TextureWidth, b.opts.TextureHeight)
	normalNudge := surf.Plane.Normal.Mul(b.opts.Nudge)

	rgb := make([]byte, params.width*params.height*atlas.BytesPerPixel)
	lit := false
	for y := 0; y < params.height; y++ {
		for x := 0; x < params.width; x++ {
			c := b.lightTexel(si, surf, params.texel(x, y).Add(normalNudge))
			i := (y*params.width + x) * atlas.BytesPerPixel
			rgb[i] = grid.Quantize(c.X())
			rgb[i+1] = grid.Quantize(c.Y())
			rgb[i+2] = grid.Quantize(c.Z())
			if rgb[i]|rgb[i+1]|rgb[i+2] != 0 {
				lit = true
			}
		}
	}
	b.commit(si, surf, &params, rgb, lit)
}

// commit waits for every lower surface index to be committed, then places
// the raster. Indices are claimed in increasing order, so the surface being
// waited on is always already in some worker's hands.
func (b *Builder) commit(si int, surf *level.Surface, p *surfaceParams, rgb []byte, lit bool) {
	b.commitMu.Lock()
	for b.nextCommit != si {
		b.commitCond.Wait()
	}
	defer func() {
		b.nextCommit++
		b.commitCond.Broadcast()
		b.commitMu.Unlock()
	}()

	surf.Width, surf.Height = p.width, p.height
	surf.AtlasIndex = -1
	surf.UVs = nil
	if !lit || b.commitErr != nil {
		return
	}
	r, err := b.Atlas.Place(p.width, p.height, rgb)
	if err != nil {
		b.commitErr = fmt.Errorf("surface %d: %w", si, err)
		return
	}
	surf.AtlasIndex = r.Page
	surf.AtlasX, surf.AtlasY = r.X, r.Y
	surf.UVs = p.uvs(surf.Verts, r.X, r.Y, b.Atlas.Width, b.Atlas.Height)
	b.texels += p.width * p.height
}

// BakeGrid samples the light grid over the root bounds. Cells whose box
// touches no leaf stay unmarked.
func (b *Builder) BakeGrid(d *jobs.Dispatcher) error {
	bounds, ok := b.lvl.WorldBounds()
	if !ok {
		return level.ErrNoSpatialIndex
	}
	g, err := grid.New(bounds, b.opts.GridCellSize)
	if err != nil {
		return err
	}
	b.Grid = g

	nx, ny := g.Block[0], g.Block[1]
	columns := make([]int, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			o := g.CellOrigin(x, y, 0)
			leaf, ok := bsp.Locate(b.lvl, o.X(), o.Y())
			if !ok {
				leaf = -1
			}
			columns[y*nx+x] = leaf
		}
	}

	jobs.Run(d, "grid", g.Len(), b, func(b *Builder, i int) {
		x, y, z := g.Unflatten(i)
		leaf := columns[y*nx+x]
		if leaf < 0 || !b.cellInWorld(g.CellBounds(x, y, z), leaf) {
			return
		}
		g.Cells[i] = b.lightCell(g.CellOrigin(x, y, z), leaf)
	})

	b.log.Infof("light grid %dx%dx%d, %d cells marked", g.Block[0], g.Block[1], g.Block[2], g.MarkedCount())
	return nil
}

// cellInWorld checks the column's leaf first and falls back to every leaf.
func (b *Builder) cellInWorld(cell [2]mgl32.Vec3, leaf int) bool {
	if overlaps(cell, b.lvl.Leaves[leaf].Bounds) {
		return true
	}
	for i := range b.lvl.Leaves {
		if len(b.lvl.Leaves[i].Vertices) >= 3 && overlaps(cell, b.lvl.Leaves[i].Bounds) {
			return true
		}
	}
	return false
}

func overlaps(a, b [2]mgl32.Vec3) bool {
	for k := 0; k < 3; k++ {
		if a[1][k] < b[0][k] || b[1][k] < a[0][k] {
			return false
		}
	}
	return true
}

func (b *Builder) Stats() Stats {
	s := Stats{
		Surfaces:    len(b.lvl.Surfaces),
		Texels:      b.texels,
		Pages:       b.Atlas.PageCount(),
		PointLights: len(b.pointLights),
		AreaLights:  len(b.areaLights),
	}
	for i := range b.lvl.Surfaces {
		if b.lvl.Surfaces[i].Used() {
			s.UsedSurfaces++
		}
	}
	if b.Grid != nil {
		s.GridCells = b.Grid.Len()
		s.MarkedCells = b.Grid.MarkedCount()
	}
	return s
}
