// Package config loads bake settings and light definitions.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/gekko3d/lightbake/bake/arealight"
	"github.com/gekko3d/lightbake/bake/jobs"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/lightmap"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Atlas image formats.
const (
	FormatPNG  = "png"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

// Config holds every bake setting.
type Config struct {
	Bake          BakeConfig           `yaml:"bake"`
	Lights        []PointLightConfig   `yaml:"lights"`
	SurfaceLights []SurfaceLightConfig `yaml:"surface_lights"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// BakeConfig holds the global lightmap and grid parameters.
type BakeConfig struct {
	Samples         float32    `yaml:"samples"` // World units per texel
	TextureWidth    int        `yaml:"texture_width"`
	TextureHeight   int        `yaml:"texture_height"`
	Threads         int        `yaml:"threads"` // 0 = one per CPU
	GridCellSize    [3]float32 `yaml:"grid_cell_size"`
	AreaSubdivision float32    `yaml:"area_subdivision"`
	TexelNudge      float32    `yaml:"texel_nudge"`
	SunDirection    [3]float32 `yaml:"sun_direction"` // Toward the sun
	SunColor        [3]float32 `yaml:"sun_color"`
	Ambient         [3]float32 `yaml:"ambient"`
	TraceDistance   float32    `yaml:"trace_distance"` // Sky ray length
	AtlasFormat     string     `yaml:"atlas_format"`   // png, bmp or tiff
}

// PointLightConfig is emitted by every thing of the given type.
type PointLightConfig struct {
	Type      int         `yaml:"type"`
	Radius    float32     `yaml:"radius"`
	Intensity float32     `yaml:"intensity"`
	Falloff   *float32    `yaml:"falloff,omitempty"` // Unset = 1
	Height    float32     `yaml:"height"`
	Ceiling   bool        `yaml:"ceiling"`         // Height measured down from the ceiling
	Color     *[3]float32 `yaml:"color,omitempty"` // Unset = white
}

// SurfaceLightConfig turns every surface with the given tag into a light.
type SurfaceLightConfig struct {
	Tag       int         `yaml:"tag"`
	Distance  float32     `yaml:"distance"`
	Intensity float32     `yaml:"intensity"`
	Falloff   *float32    `yaml:"falloff,omitempty"` // Unset = 1
	InnerCone float32     `yaml:"inner_cone"`        // Degrees
	OuterCone float32     `yaml:"outer_cone"`        // Degrees, 0 = 90
	Color     *[3]float32 `yaml:"color,omitempty"`   // Unset = white
	NoCenter  bool        `yaml:"no_center"`
	Surfaces  []string    `yaml:"surfaces,omitempty"` // wall, upper, lower, middle, floor, ceiling
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	SunDirection mgl32.Vec3 // Normalized Bake.SunDirection
	Workers      int        // Effective worker count
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Parse(cfg, data); err != nil {
			return nil, err
		}
	}
	cfg.computeDerived()
	return cfg, nil
}

// Parse overlays data onto cfg. Only keys present in data are overwritten;
// lists replace the defaults wholesale.
func Parse(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	cfg.computeDerived()
	return nil
}

func (c *Config) computeDerived() {
	sun := mgl32.Vec3(c.Bake.SunDirection)
	if sun.Len() > 0 {
		sun = sun.Normalize()
	}
	c.Derived.SunDirection = sun

	c.Derived.Workers = c.Bake.Threads
	if c.Derived.Workers == 0 {
		c.Derived.Workers = jobs.DefaultWorkers()
	}
	if c.Bake.AtlasFormat == "" {
		c.Bake.AtlasFormat = FormatPNG
	}
	c.Bake.AtlasFormat = strings.ToLower(c.Bake.AtlasFormat)

	for i := range c.Lights {
		l := &c.Lights[i]
		l.Falloff, l.Color = withLightDefaults(l.Falloff, l.Color)
	}
	for i := range c.SurfaceLights {
		l := &c.SurfaceLights[i]
		l.Falloff, l.Color = withLightDefaults(l.Falloff, l.Color)
		if l.OuterCone == 0 {
			l.OuterCone = 90
		}
	}
}

// withLightDefaults fills in a linear falloff and white for keys the file
// left out. Explicit zeros are kept.
func withLightDefaults(falloff *float32, color *[3]float32) (*float32, *[3]float32) {
	if falloff == nil {
		one := float32(1)
		falloff = &one
	}
	if color == nil {
		color = &[3]float32{1, 1, 1}
	}
	return falloff, color
}

// SetThreads overrides bake.threads; 0 picks one worker per CPU.
func (c *Config) SetThreads(n int) {
	c.Bake.Threads = n
	c.computeDerived()
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	b := c.Bake
	if c.Derived.Workers < jobs.MinWorkers || c.Derived.Workers > jobs.MaxWorkers {
		return fmt.Errorf("bake.threads: %d outside %d..%d", b.Threads, jobs.MinWorkers, jobs.MaxWorkers)
	}
	if b.Samples <= 0 {
		return fmt.Errorf("bake.samples: must be positive, got %g", b.Samples)
	}
	if b.TextureWidth <= 0 || b.TextureHeight <= 0 {
		return fmt.Errorf("bake.texture_width/height: must be positive, got %dx%d", b.TextureWidth, b.TextureHeight)
	}
	for a, v := range b.GridCellSize {
		if v <= 0 {
			return fmt.Errorf("bake.grid_cell_size[%d]: must be positive, got %g", a, v)
		}
	}
	if b.AreaSubdivision <= 0 {
		return fmt.Errorf("bake.area_subdivision: must be positive, got %g", b.AreaSubdivision)
	}
	if b.TraceDistance <= 0 {
		return fmt.Errorf("bake.trace_distance: must be positive, got %g", b.TraceDistance)
	}
	if c.Derived.SunDirection.Len() == 0 {
		return fmt.Errorf("bake.sun_direction: must not be zero")
	}
	switch b.AtlasFormat {
	case FormatPNG, FormatBMP, FormatTIFF:
	default:
		return fmt.Errorf("bake.atlas_format: unknown format %q", b.AtlasFormat)
	}

	types := make(map[int]bool, len(c.Lights))
	for i, l := range c.Lights {
		if types[l.Type] {
			return fmt.Errorf("lights[%d]: duplicate type %d", i, l.Type)
		}
		types[l.Type] = true
		if l.Radius <= 0 {
			return fmt.Errorf("lights[%d]: radius must be positive, got %g", i, l.Radius)
		}
	}
	tags := make(map[int]bool, len(c.SurfaceLights))
	for i, l := range c.SurfaceLights {
		if l.Tag == 0 {
			return fmt.Errorf("surface_lights[%d]: tag 0 matches untagged surfaces", i)
		}
		if tags[l.Tag] {
			return fmt.Errorf("surface_lights[%d]: duplicate tag %d", i, l.Tag)
		}
		tags[l.Tag] = true
		if l.Distance <= 0 {
			return fmt.Errorf("surface_lights[%d]: distance must be positive, got %g", i, l.Distance)
		}
		if l.InnerCone < 0 || l.OuterCone > 180 || l.InnerCone > l.OuterCone {
			return fmt.Errorf("surface_lights[%d]: cones %g/%g out of order", i, l.InnerCone, l.OuterCone)
		}
		if _, err := parseKinds(l.Surfaces); err != nil {
			return fmt.Errorf("surface_lights[%d]: %w", i, err)
		}
	}
	return nil
}

var kindNames = map[string][]level.SurfaceType{
	"wall":    {level.WallMiddle, level.WallUpper, level.WallLower},
	"middle":  {level.WallMiddle},
	"upper":   {level.WallUpper},
	"lower":   {level.WallLower},
	"floor":   {level.Floor},
	"ceiling": {level.Ceiling},
}

func parseKinds(names []string) ([]level.SurfaceType, error) {
	var out []level.SurfaceType
	for _, n := range names {
		kinds, ok := kindNames[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("unknown surface kind %q", n)
		}
		out = append(out, kinds...)
	}
	return out, nil
}

func radians(deg float32) float32 {
	return deg * math.Pi / 180
}

// Options converts the configuration into lightmap builder options. Call
// Validate first; unknown surface kinds are dropped here.
func (c *Config) Options() lightmap.Options {
	b := c.Bake
	opts := lightmap.Options{
		Samples:         b.Samples,
		TextureWidth:    b.TextureWidth,
		TextureHeight:   b.TextureHeight,
		GridCellSize:    mgl32.Vec3(b.GridCellSize),
		AreaSubdivision: b.AreaSubdivision,
		Nudge:           b.TexelNudge,
		SunDirection:    c.Derived.SunDirection,
		SunColor:        mgl32.Vec3(b.SunColor),
		Ambient:         mgl32.Vec3(b.Ambient),
		TraceDistance:   b.TraceDistance,
	}
	for _, l := range c.Lights {
		falloff, color := withLightDefaults(l.Falloff, l.Color)
		opts.PointLights = append(opts.PointLights, lightmap.PointLightDef{
			Type:      l.Type,
			Radius:    l.Radius,
			Intensity: l.Intensity,
			Falloff:   *falloff,
			Height:    l.Height,
			Ceiling:   l.Ceiling,
			Color:     mgl32.Vec3(*color),
		})
	}
	for _, l := range c.SurfaceLights {
		kinds, _ := parseKinds(l.Surfaces)
		falloff, color := withLightDefaults(l.Falloff, l.Color)
		opts.SurfaceLights = append(opts.SurfaceLights, lightmap.SurfaceLightDef{
			Definition: arealight.Definition{
				Tag:       l.Tag,
				Distance:  l.Distance,
				Intensity: l.Intensity,
				Falloff:   *falloff,
				InnerCone: radians(l.InnerCone),
				OuterCone: radians(l.OuterCone),
				Color:     mgl32.Vec3(*color),
				NoCenter:  l.NoCenter,
			},
			Kinds: kinds,
		})
	}
	return opts
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
