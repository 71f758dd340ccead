package export

import (
	"fmt"
	"os"
	"sort"

	"github.com/gekko3d/lightbake/bake/atlas"
	"github.com/gekko3d/lightbake/bake/config"
	"github.com/gekko3d/lightbake/bake/grid"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/lightmap"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Manifest describes one bake run.
type Manifest struct {
	BakeID        string            `yaml:"bake_id"`
	Created       string            `yaml:"created"`
	Level         string            `yaml:"level"`
	Settings      config.BakeConfig `yaml:"settings"`
	Counts        Counts            `yaml:"counts"`
	Luminance     LuminanceStats    `yaml:"luminance"`
	GridLuminance LuminanceStats    `yaml:"grid_luminance"`
	Files         []string          `yaml:"files"`
	// Stage wall times of the run that produced the files
	Timings map[string]string `yaml:"timings,omitempty"`
}

type Counts struct {
	Surfaces     int `yaml:"surfaces"`
	UsedSurfaces int `yaml:"used_surfaces"`
	Texels       int `yaml:"texels"`
	AtlasPages   int `yaml:"atlas_pages"`
	GridCells    int `yaml:"grid_cells"`
	MarkedCells  int `yaml:"marked_cells"`
	PointLights  int `yaml:"point_lights"`
	AreaLights   int `yaml:"area_lights"`
}

// LuminanceStats summarises Rec. 709 luminance in [0,1].
type LuminanceStats struct {
	Samples int     `yaml:"samples"`
	Mean    float64 `yaml:"mean"`
	StdDev  float64 `yaml:"stddev"`
	Min     float64 `yaml:"min"`
	P10     float64 `yaml:"p10"`
	Median  float64 `yaml:"median"`
	P90     float64 `yaml:"p90"`
	Max     float64 `yaml:"max"`
}

func NewBakeID() string {
	return uuid.NewString()
}

func CountsFrom(s lightmap.Stats) Counts {
	return Counts{
		Surfaces:     s.Surfaces,
		UsedSurfaces: s.UsedSurfaces,
		Texels:       s.Texels,
		AtlasPages:   s.Pages,
		GridCells:    s.GridCells,
		MarkedCells:  s.MarkedCells,
		PointLights:  s.PointLights,
		AreaLights:   s.AreaLights,
	}
}

func luminance(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// SurfaceLuminance collects the luminance of every texel owned by a lit
// surface. Free atlas space is not sampled.
func SurfaceLuminance(lvl *level.Level, pages []*atlas.Page) []float64 {
	var out []float64
	for i := range lvl.Surfaces {
		s := &lvl.Surfaces[i]
		if !s.Used() || s.AtlasIndex >= len(pages) {
			continue
		}
		p := pages[s.AtlasIndex]
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				o := ((s.AtlasY+y)*p.Width + s.AtlasX + x) * atlas.BytesPerPixel
				out = append(out, luminance(float64(p.Pix[o])/255, float64(p.Pix[o+1])/255, float64(p.Pix[o+2])/255))
			}
		}
	}
	return out
}

// GridLuminance collects the luminance of every marked cell.
func GridLuminance(g *grid.Grid) []float64 {
	if g == nil {
		return nil
	}
	var out []float64
	for _, c := range g.Cells {
		if c.Marked {
			out = append(out, luminance(float64(c.Color.X()), float64(c.Color.Y()), float64(c.Color.Z())))
		}
	}
	return out
}

// Summarize sorts values in place and computes their statistics.
func Summarize(values []float64) LuminanceStats {
	if len(values) == 0 {
		return LuminanceStats{}
	}
	sort.Float64s(values)
	s := LuminanceStats{
		Samples: len(values),
		Min:     values[0],
		Max:     values[len(values)-1],
		P10:     stat.Quantile(0.1, stat.Empirical, values, nil),
		Median:  stat.Quantile(0.5, stat.Empirical, values, nil),
		P90:     stat.Quantile(0.9, stat.Empirical, values, nil),
	}
	if len(values) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	} else {
		s.Mean = values[0]
	}
	return s
}

func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("reading manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}
