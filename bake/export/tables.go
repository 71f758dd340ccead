package export

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gekko3d/lightbake/bake/grid"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gocarina/gocsv"
)

// SurfaceRecord is one row of the surface table.
type SurfaceRecord struct {
	Index  int    `csv:"index"`
	Type   string `csv:"type"`
	Leaf   int    `csv:"leaf"`
	Sector int    `csv:"sector"`
	Tag    int    `csv:"tag"`
	Atlas  int    `csv:"atlas"` // -1 when unlit
	X      int    `csv:"x"`
	Y      int    `csv:"y"`
	Width  int    `csv:"width"`
	Height int    `csv:"height"`
	UVs    string `csv:"uvs"` // u:v pairs separated by ';'
}

func formatUVs(uvs [][2]float32) string {
	parts := make([]string, len(uvs))
	for i, uv := range uvs {
		parts[i] = strconv.FormatFloat(float64(uv[0]), 'g', -1, 32) + ":" +
			strconv.FormatFloat(float64(uv[1]), 'g', -1, 32)
	}
	return strings.Join(parts, ";")
}

// ParseUVs reads the uvs column back.
func ParseUVs(s string) ([][2]float32, error) {
	if s == "" {
		return nil, nil
	}
	var out [][2]float32
	for _, pair := range strings.Split(s, ";") {
		u, v, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("uv pair %q", pair)
		}
		fu, err := strconv.ParseFloat(u, 32)
		if err != nil {
			return nil, err
		}
		fv, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]float32{float32(fu), float32(fv)})
	}
	return out, nil
}

func SurfaceRecords(lvl *level.Level) []SurfaceRecord {
	records := make([]SurfaceRecord, len(lvl.Surfaces))
	for i := range lvl.Surfaces {
		s := &lvl.Surfaces[i]
		records[i] = SurfaceRecord{
			Index:  i,
			Type:   s.Type.String(),
			Leaf:   s.Leaf,
			Sector: s.Sector,
			Tag:    s.Tag,
			Atlas:  s.AtlasIndex,
			X:      s.AtlasX,
			Y:      s.AtlasY,
			Width:  s.Width,
			Height: s.Height,
			UVs:    formatUVs(s.UVs),
		}
	}
	return records
}

// WriteSurfaceTable writes one CSV row per surface.
func WriteSurfaceTable(path string, lvl *level.Level) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating surface table: %w", err)
	}
	defer f.Close()

	if err := gocsv.Marshal(SurfaceRecords(lvl), f); err != nil {
		return fmt.Errorf("writing surface table: %w", err)
	}
	return nil
}

// WriteGrid writes the light grid blob.
func WriteGrid(path string, g *grid.Grid) error {
	data, err := g.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding light grid: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing light grid: %w", err)
	}
	return nil
}
