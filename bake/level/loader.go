package level

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

type levelFile struct {
	Vertices [][2]float32 `yaml:"vertices"`
	Sectors  []sectorFile `yaml:"sectors"`
	Leaves   []leafFile   `yaml:"leaves"`
	Nodes    []nodeFile   `yaml:"nodes"`
	Root     *childFile   `yaml:"root"`
	Things   []thingFile  `yaml:"things"`
	PVS      []string     `yaml:"pvs"`
}

type sectorFile struct {
	Floor   float32 `yaml:"floor"`
	Ceiling float32 `yaml:"ceiling"`
	Tag     int     `yaml:"tag"`
	Sky     bool    `yaml:"sky"`
}

type leafFile struct {
	Sector   int   `yaml:"sector"`
	Vertices []int `yaml:"vertices"`
	LineTags []int `yaml:"line_tags"`
}

type childFile struct {
	Leaf  bool `yaml:"leaf"`
	Index int  `yaml:"index"`
}

type nodeFile struct {
	X     float32   `yaml:"x"`
	Y     float32   `yaml:"y"`
	DX    float32   `yaml:"dx"`
	DY    float32   `yaml:"dy"`
	Front childFile `yaml:"front"`
	Back  childFile `yaml:"back"`
}

type thingFile struct {
	Type int     `yaml:"type"`
	X    float32 `yaml:"x"`
	Y    float32 `yaml:"y"`
}

// Load reads a YAML level description.
func Load(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level %s: %w", path, err)
	}
	lvl, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing level %s: %w", path, err)
	}
	return lvl, nil
}

// Parse decodes a YAML level description. Leaf outlines are normalised to
// counter-clockwise order. Nodes are optional; without them Root stays
// unset and the BSP builder is expected to run.
func Parse(data []byte) (*Level, error) {
	var f levelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	lvl := New()
	for _, v := range f.Vertices {
		lvl.Vertices = append(lvl.Vertices, mgl32.Vec2{v[0], v[1]})
	}
	for _, s := range f.Sectors {
		if s.Ceiling < s.Floor {
			return nil, fmt.Errorf("sector %d: ceiling %g below floor %g", len(lvl.Sectors), s.Ceiling, s.Floor)
		}
		lvl.Sectors = append(lvl.Sectors, Sector{
			FloorHeight:   s.Floor,
			CeilingHeight: s.Ceiling,
			Tag:           s.Tag,
			SkyCeiling:    s.Sky,
		})
	}
	for i, lf := range f.Leaves {
		leaf := Leaf{Sector: lf.Sector, Vertices: append([]int(nil), lf.Vertices...)}
		if len(lf.LineTags) > 0 {
			if len(lf.LineTags) != len(lf.Vertices) {
				return nil, fmt.Errorf("leaf %d: %d line tags for %d edges", i, len(lf.LineTags), len(lf.Vertices))
			}
			leaf.LineTags = append([]int(nil), lf.LineTags...)
		}
		lvl.Leaves = append(lvl.Leaves, leaf)
	}
	for _, t := range f.Things {
		lvl.Things = append(lvl.Things, Thing{Type: t.Type, X: t.X, Y: t.Y})
	}
	for _, n := range f.Nodes {
		lvl.Nodes = append(lvl.Nodes, Node{
			X: n.X, Y: n.Y, DX: n.DX, DY: n.DY,
			Children: [2]Child{
				{Leaf: n.Front.Leaf, Index: n.Front.Index},
				{Leaf: n.Back.Leaf, Index: n.Back.Index},
			},
		})
	}
	if f.Root != nil {
		lvl.Root = Child{Leaf: f.Root.Leaf, Index: f.Root.Index}
	}
	if len(f.PVS) > 0 {
		pvs, err := ParseRows(f.PVS)
		if err != nil {
			return nil, err
		}
		lvl.PVS = pvs
	}

	for i := range lvl.Leaves {
		leaf := &lvl.Leaves[i]
		for _, v := range leaf.Vertices {
			if v < 0 || v >= len(lvl.Vertices) {
				return nil, fmt.Errorf("leaf %d: vertex %d out of range", i, v)
			}
		}
		if SignedArea(lvl.LeafPolygon(i)) < 0 {
			reverseLeaf(leaf)
		}
	}
	lvl.ComputeLeafBounds()
	return lvl, nil
}

// reverseLeaf flips the winding and keeps each tag on its edge.
func reverseLeaf(leaf *Leaf) {
	n := len(leaf.Vertices)
	verts := make([]int, n)
	for i, v := range leaf.Vertices {
		verts[n-1-i] = v
	}
	if len(leaf.LineTags) == n {
		// edge i (v_i→v_i+1) becomes edge n-2-i after reversal
		tags := make([]int, n)
		for i, t := range leaf.LineTags {
			tags[((n-2-i)%n+n)%n] = t
		}
		leaf.LineTags = tags
	}
	leaf.Vertices = verts
}
